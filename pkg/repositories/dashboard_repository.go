package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/northfork-studio/crm-engine/pkg/database"
	"github.com/northfork-studio/crm-engine/pkg/models"
)

// DashboardRepository runs the read-only aggregate queries behind the
// dashboard and stats endpoints. Every method is a snapshot computed at
// request time; nothing here mutates state.
type DashboardRepository interface {
	CountByStage(ctx context.Context) ([]models.StageCount, error)
	CountBySource(ctx context.Context) ([]models.SourceCount, error)
	ScoreBuckets(ctx context.Context) (*models.ScoreBuckets, error)
	// WonLost returns the number of won and lost leads, archived included.
	WonLost(ctx context.Context) (int, int, error)
	// Totals returns the number of non-archived leads and how many of them
	// converted to clients.
	Totals(ctx context.Context) (int, int, error)
	// StaleLeads returns non-terminal, non-archived leads with no activity
	// since the cutoff, oldest first, capped at limit.
	StaleLeads(ctx context.Context, cutoff time.Time, limit int) ([]*models.Lead, error)
}

type dashboardRepository struct {
	db *database.DB
}

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(db *database.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

// CountByStage counts non-archived leads per pipeline stage. Stages with no
// leads are included with a zero count so the pipeline renders completely.
func (r *dashboardRepository) CountByStage(ctx context.Context) ([]models.StageCount, error) {
	query := `
		SELECT stage, COUNT(*)
		FROM crm_leads
		WHERE status <> 'archived'
		GROUP BY stage`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stage count: %w", err)
		}
		counts[stage] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stage counts: %w", err)
	}

	result := make([]models.StageCount, 0, len(models.PipelineStages))
	for _, stage := range models.PipelineStages {
		result = append(result, models.StageCount{
			Stage: stage,
			Label: models.StageLabels[stage],
			Count: counts[stage],
		})
	}
	return result, nil
}

func (r *dashboardRepository) CountBySource(ctx context.Context) ([]models.SourceCount, error) {
	query := `
		SELECT source, COUNT(*)
		FROM crm_leads
		WHERE status <> 'archived'
		GROUP BY source
		ORDER BY COUNT(*) DESC, source`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads by source: %w", err)
	}
	defer rows.Close()

	result := []models.SourceCount{}
	for rows.Next() {
		var sc models.SourceCount
		if err := rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan source count: %w", err)
		}
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read source counts: %w", err)
	}

	return result, nil
}

func (r *dashboardRepository) ScoreBuckets(ctx context.Context) (*models.ScoreBuckets, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE score >= 70),
			COUNT(*) FILTER (WHERE score >= 40 AND score < 70),
			COUNT(*) FILTER (WHERE score < 40)
		FROM crm_leads
		WHERE status <> 'archived'`

	var buckets models.ScoreBuckets
	if err := r.db.QueryRow(ctx, query).Scan(&buckets.High, &buckets.Medium, &buckets.Low); err != nil {
		return nil, fmt.Errorf("failed to compute score buckets: %w", err)
	}

	return &buckets, nil
}

func (r *dashboardRepository) WonLost(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE stage = $1),
			COUNT(*) FILTER (WHERE stage = $2)
		FROM crm_leads`

	var won, lost int
	if err := r.db.QueryRow(ctx, query, models.StageWon, models.StageLost).Scan(&won, &lost); err != nil {
		return 0, 0, fmt.Errorf("failed to count won/lost leads: %w", err)
	}

	return won, lost, nil
}

func (r *dashboardRepository) Totals(ctx context.Context) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status <> 'archived'),
			COUNT(*) FILTER (WHERE status <> 'archived' AND is_client)
		FROM crm_leads`

	var total, clients int
	if err := r.db.QueryRow(ctx, query).Scan(&total, &clients); err != nil {
		return 0, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	return total, clients, nil
}

func (r *dashboardRepository) StaleLeads(ctx context.Context, cutoff time.Time, limit int) ([]*models.Lead, error) {
	query := `
		SELECT ` + leadColumns + `
		FROM crm_leads
		WHERE status <> 'archived'
		  AND stage NOT IN ($1, $2)
		  AND last_activity_at < $3
		ORDER BY last_activity_at ASC
		LIMIT $4`

	rows, err := r.db.Query(ctx, query, models.StageWon, models.StageLost, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale leads: %w", err)
	}
	defer rows.Close()

	leads := []*models.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stale leads: %w", err)
	}

	return leads, nil
}

var _ DashboardRepository = (*dashboardRepository)(nil)
