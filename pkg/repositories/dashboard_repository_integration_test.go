//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/testhelpers"
)

// The dashboard queries aggregate over the whole shared test database, so
// these tests assert structural properties and deltas rather than absolute
// counts.

func TestDashboardRepository_CountByStage(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	repo := NewDashboardRepository(db.DB)

	counts, err := repo.CountByStage(context.Background())
	require.NoError(t, err)

	// Every pipeline stage appears in pipeline order, zero counts included
	require.Len(t, counts, len(models.PipelineStages))
	for i, stage := range models.PipelineStages {
		assert.Equal(t, stage, counts[i].Stage)
		assert.Equal(t, models.StageLabels[stage], counts[i].Label)
		assert.GreaterOrEqual(t, counts[i].Count, 0)
	}
}

func TestDashboardRepository_CountsReflectNewLead(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	dashRepo := NewDashboardRepository(db.DB)
	leadRepo := NewLeadRepository(db.DB)
	ctx := context.Background()

	before, err := dashRepo.CountByStage(ctx)
	require.NoError(t, err)

	_, _, err = leadRepo.Upsert(ctx, &models.LeadSubmission{
		Email:  uniqueEmail(t),
		Source: models.SourceReferral,
	})
	require.NoError(t, err)

	after, err := dashRepo.CountByStage(ctx)
	require.NoError(t, err)
	assert.Equal(t, before[0].Count+1, after[0].Count, "new lead lands in the first stage")
}

func TestDashboardRepository_WonLostAndTotals(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	dashRepo := NewDashboardRepository(db.DB)
	leadRepo := NewLeadRepository(db.DB)
	ctx := context.Background()

	wonBefore, _, err := dashRepo.WonLost(ctx)
	require.NoError(t, err)
	totalBefore, clientsBefore, err := dashRepo.Totals(ctx)
	require.NoError(t, err)

	lead, _, err := leadRepo.Upsert(ctx, &models.LeadSubmission{
		Email:  uniqueEmail(t),
		Source: models.SourceManual,
	})
	require.NoError(t, err)
	_, _, _, err = leadRepo.ChangeStage(ctx, lead.ID, models.StageWon)
	require.NoError(t, err)
	isClient := true
	_, err = leadRepo.Update(ctx, lead.ID, &models.LeadUpdate{IsClient: &isClient})
	require.NoError(t, err)

	wonAfter, _, err := dashRepo.WonLost(ctx)
	require.NoError(t, err)
	totalAfter, clientsAfter, err := dashRepo.Totals(ctx)
	require.NoError(t, err)

	assert.Equal(t, wonBefore+1, wonAfter)
	assert.Equal(t, totalBefore+1, totalAfter)
	assert.Equal(t, clientsBefore+1, clientsAfter)
}

func TestDashboardRepository_StaleLeads(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	dashRepo := NewDashboardRepository(db.DB)
	leadRepo := NewLeadRepository(db.DB)
	ctx := context.Background()

	lead, _, err := leadRepo.Upsert(ctx, &models.LeadSubmission{
		Email:  uniqueEmail(t),
		Source: models.SourceChat,
	})
	require.NoError(t, err)

	// With a future cutoff the fresh lead counts as stale
	stale, err := dashRepo.StaleLeads(ctx, time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.True(t, containsLead(stale, lead.ID.String()))

	// Terminal stages are never stale
	_, _, _, err = leadRepo.ChangeStage(ctx, lead.ID, models.StageWon)
	require.NoError(t, err)
	stale, err = dashRepo.StaleLeads(ctx, time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	assert.False(t, containsLead(stale, lead.ID.String()))

	// A cutoff in the past matches nothing recent, and the result is a
	// non-nil empty slice
	stale, err = dashRepo.StaleLeads(ctx, time.Now().Add(-24*365*time.Hour), 1000)
	require.NoError(t, err)
	assert.NotNil(t, stale)
}

func containsLead(leads []*models.Lead, id string) bool {
	for _, l := range leads {
		if l.ID.String() == id {
			return true
		}
	}
	return false
}

func TestDashboardRepository_ScoreBuckets(t *testing.T) {
	db := testhelpers.GetTestDB(t)
	dashRepo := NewDashboardRepository(db.DB)
	leadRepo := NewLeadRepository(db.DB)
	ctx := context.Background()

	before, err := dashRepo.ScoreBuckets(ctx)
	require.NoError(t, err)

	lead, _, err := leadRepo.Upsert(ctx, &models.LeadSubmission{
		Email:  uniqueEmail(t),
		Source: models.SourceAPI,
	})
	require.NoError(t, err)
	score := 85
	_, err = leadRepo.Update(ctx, lead.ID, &models.LeadUpdate{Score: &score})
	require.NoError(t, err)

	after, err := dashRepo.ScoreBuckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.High+1, after.High)
}
