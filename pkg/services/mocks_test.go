package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/models"
)

// mockLeadRepo implements repositories.LeadRepository in memory, mirroring
// the merge and first-touch semantics of the SQL upsert.
type mockLeadRepo struct {
	leads        map[uuid.UUID]*models.Lead
	history      []*models.StageHistoryEntry
	conflictOnce bool
	upsertErr    error
	getErr       error
	updateErr    error
	changeErr    error
	deleteErr    error
	archiveErr   error
}

func newMockLeadRepo() *mockLeadRepo {
	return &mockLeadRepo{leads: make(map[uuid.UUID]*models.Lead)}
}

func (m *mockLeadRepo) findByEmail(email string) *models.Lead {
	for _, l := range m.leads {
		if l.Email == email {
			return l
		}
	}
	return nil
}

func mergeField(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func firstTouch(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func (m *mockLeadRepo) Upsert(_ context.Context, sub *models.LeadSubmission) (*models.Lead, bool, error) {
	if m.upsertErr != nil {
		return nil, false, m.upsertErr
	}
	if m.conflictOnce {
		m.conflictOnce = false
		return nil, false, apperrors.ErrConflict
	}

	now := time.Now()
	if existing := m.findByEmail(sub.Email); existing != nil {
		mergeField(&existing.Name, sub.Name)
		mergeField(&existing.Phone, sub.Phone)
		mergeField(&existing.Company, sub.Company)
		mergeField(&existing.Website, sub.Website)
		mergeField(&existing.Notes, sub.Notes)
		firstTouch(&existing.UTMSource, sub.UTMSource)
		firstTouch(&existing.UTMMedium, sub.UTMMedium)
		firstTouch(&existing.UTMCampaign, sub.UTMCampaign)
		firstTouch(&existing.UTMTerm, sub.UTMTerm)
		firstTouch(&existing.UTMContent, sub.UTMContent)
		firstTouch(&existing.Referrer, sub.Referrer)
		firstTouch(&existing.SourceURL, sub.SourceURL)
		firstTouch(&existing.ConversionPage, sub.ConversionPage)
		existing.LastActivityAt = now
		existing.UpdatedAt = now
		return existing, false, nil
	}

	lead := &models.Lead{
		ID:             uuid.New(),
		Email:          sub.Email,
		Name:           sub.Name,
		Phone:          sub.Phone,
		Company:        sub.Company,
		Website:        sub.Website,
		Notes:          sub.Notes,
		Stage:          models.StageNew,
		Source:         sub.Source,
		Status:         models.StatusNew,
		UTMSource:      sub.UTMSource,
		UTMMedium:      sub.UTMMedium,
		UTMCampaign:    sub.UTMCampaign,
		UTMTerm:        sub.UTMTerm,
		UTMContent:     sub.UTMContent,
		Referrer:       sub.Referrer,
		SourceURL:      sub.SourceURL,
		ConversionPage: sub.ConversionPage,
		CreatedAt:      now,
		UpdatedAt:      now,
		StageChangedAt: now,
		LastActivityAt: now,
	}
	m.leads[lead.ID] = lead
	return lead, true, nil
}

func (m *mockLeadRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return lead, nil
}

func (m *mockLeadRepo) List(_ context.Context, filters models.LeadFilters) ([]*models.Lead, int, error) {
	var result []*models.Lead
	for _, l := range m.leads {
		if filters.Status != "" {
			if l.Status != filters.Status {
				continue
			}
		} else if l.Status == models.StatusArchived {
			continue
		}
		if filters.Stage != "" && l.Stage != filters.Stage {
			continue
		}
		if filters.Source != "" && l.Source != filters.Source {
			continue
		}
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *mockLeadRepo) Update(_ context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if upd.Name != nil {
		lead.Name = *upd.Name
	}
	if upd.Phone != nil {
		lead.Phone = *upd.Phone
	}
	if upd.Company != nil {
		lead.Company = *upd.Company
	}
	if upd.Website != nil {
		lead.Website = *upd.Website
	}
	if upd.Notes != nil {
		lead.Notes = *upd.Notes
	}
	if upd.Status != nil {
		lead.Status = *upd.Status
	}
	if upd.Score != nil {
		lead.Score = *upd.Score
	}
	if upd.ScoreBreakdown != nil {
		lead.ScoreBreakdown = *upd.ScoreBreakdown
	}
	if upd.IsClient != nil {
		lead.IsClient = *upd.IsClient
	}
	lead.UpdatedAt = time.Now()
	return lead, nil
}

func (m *mockLeadRepo) ChangeStage(_ context.Context, id uuid.UUID, toStage string) (*models.Lead, string, bool, error) {
	if m.changeErr != nil {
		return nil, "", false, m.changeErr
	}
	lead, ok := m.leads[id]
	if !ok {
		return nil, "", false, apperrors.ErrNotFound
	}
	fromStage := lead.Stage
	if fromStage == toStage {
		return lead, fromStage, false, nil
	}
	now := time.Now()
	lead.Stage = toStage
	lead.StageChangedAt = now
	lead.LastActivityAt = now
	lead.UpdatedAt = now
	m.history = append(m.history, &models.StageHistoryEntry{
		ID:        int64(len(m.history) + 1),
		LeadID:    id,
		FromStage: fromStage,
		ToStage:   toStage,
		EnteredAt: now,
	})
	return lead, fromStage, true, nil
}

func (m *mockLeadRepo) Archive(_ context.Context, id uuid.UUID) error {
	if m.archiveErr != nil {
		return m.archiveErr
	}
	lead, ok := m.leads[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	lead.Status = models.StatusArchived
	return nil
}

func (m *mockLeadRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.leads[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

// mockActivityRepo implements repositories.ActivityRepository in memory.
type mockActivityRepo struct {
	activities []*models.Activity
	leads      *mockLeadRepo
	createErr  error
	listErr    error
}

func (m *mockActivityRepo) Create(_ context.Context, activity *models.Activity) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.leads != nil {
		if _, ok := m.leads.leads[activity.LeadID]; !ok {
			return apperrors.ErrNotFound
		}
	}
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	activity.CreatedAt = time.Now()
	m.activities = append(m.activities, activity)
	if m.leads != nil {
		lead := m.leads.leads[activity.LeadID]
		lead.LastActivityAt = activity.CreatedAt
		if models.MarksContact(activity.Type) {
			t := activity.CreatedAt
			lead.LastContactedAt = &t
		}
	}
	return nil
}

func (m *mockActivityRepo) ListByLead(_ context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var result []*models.Activity
	for _, a := range m.activities {
		if a.LeadID != leadID {
			continue
		}
		if len(filters.Types) > 0 {
			match := false
			for _, t := range filters.Types {
				if a.Type == t {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, len(result), nil
}

func (m *mockActivityRepo) byType(activityType string) []*models.Activity {
	var result []*models.Activity
	for _, a := range m.activities {
		if a.Type == activityType {
			result = append(result, a)
		}
	}
	return result
}

// mockHistoryRepo implements repositories.StageHistoryRepository over the
// entries recorded by mockLeadRepo.
type mockHistoryRepo struct {
	leads *mockLeadRepo
}

func (m *mockHistoryRepo) ListByLead(_ context.Context, leadID uuid.UUID) ([]*models.StageHistoryEntry, error) {
	var result []*models.StageHistoryEntry
	for _, e := range m.leads.history {
		if e.LeadID == leadID {
			result = append(result, e)
		}
	}
	return result, nil
}
