package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/config"
	"github.com/northfork-studio/crm-engine/pkg/logging"
	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/repositories"
)

// LeadService implements the lead lifecycle: upsert-by-email submission,
// field updates, stage transitions, and archival. Activities that record
// these operations are appended best-effort: a logging failure after the
// primary mutation succeeded is logged server-side and the success is still
// reported.
type LeadService interface {
	Submit(ctx context.Context, sub *models.LeadSubmission) (*models.UpsertResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.LeadDetail, error)
	List(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error)
	Update(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error)
	// ChangeStage moves a lead through the pipeline. The returned bool is
	// false when the lead was already in the requested stage.
	ChangeStage(ctx context.Context, id uuid.UUID, stage string) (*models.Lead, bool, error)
	Delete(ctx context.Context, id uuid.UUID, permanent bool) error
}

type leadService struct {
	leads      repositories.LeadRepository
	activities repositories.ActivityRepository
	history    repositories.StageHistoryRepository
	cfg        *config.Config
	logger     *zap.Logger
}

// NewLeadService creates a new LeadService.
func NewLeadService(
	leads repositories.LeadRepository,
	activities repositories.ActivityRepository,
	history repositories.StageHistoryRepository,
	cfg *config.Config,
	logger *zap.Logger,
) LeadService {
	return &leadService{
		leads:      leads,
		activities: activities,
		history:    history,
		cfg:        cfg,
		logger:     logger.Named("lead-service"),
	}
}

var _ LeadService = (*leadService)(nil)

// NormalizeEmail lowercases and trims an email address. All email matching
// in the lead store happens on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *leadService) Submit(ctx context.Context, sub *models.LeadSubmission) (*models.UpsertResult, error) {
	sub.Email = NormalizeEmail(sub.Email)
	if sub.Email == "" {
		return nil, fmt.Errorf("%w: email is required", apperrors.ErrValidation)
	}
	if !strings.Contains(sub.Email, "@") {
		return nil, fmt.Errorf("%w: email %q is not a valid address", apperrors.ErrValidation, logging.MaskEmail(sub.Email))
	}
	if !models.ValidSource(sub.Source) {
		return nil, fmt.Errorf("%w: unrecognized source %q", apperrors.ErrValidation, sub.Source)
	}

	lead, isNew, err := s.leads.Upsert(ctx, sub)
	if errors.Is(err, apperrors.ErrConflict) {
		lead, isNew, err = s.leads.Upsert(ctx, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("submit lead: %w", err)
	}

	activity := &models.Activity{
		LeadID:    lead.ID,
		Type:      models.ActivityFormSubmission,
		Title:     "Form submission received",
		ActorType: models.ActorSystem,
		Metadata: map[string]any{
			"source": sub.Source,
			"is_new": isNew,
		},
	}
	if !isNew {
		activity.Type = models.ActivitySystem
		activity.Title = "Repeat submission merged into existing lead"
	}
	s.appendActivity(ctx, activity)

	return &models.UpsertResult{Lead: lead, IsNew: isNew}, nil
}

func (s *leadService) Get(ctx context.Context, id uuid.UUID) (*models.LeadDetail, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}

	activities, _, err := s.activities.ListByLead(ctx, id, models.ActivityFilters{
		Page:  1,
		Limit: s.cfg.CRM.MaxPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("get lead activities: %w", err)
	}

	history, err := s.history.ListByLead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get lead stage history: %w", err)
	}

	return &models.LeadDetail{
		Lead:         lead,
		Activities:   activities,
		StageHistory: history,
	}, nil
}

func (s *leadService) List(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error) {
	if filters.Stage != "" && !models.ValidStage(filters.Stage) {
		return nil, 0, fmt.Errorf("%w: unrecognized stage %q", apperrors.ErrValidation, filters.Stage)
	}
	if filters.Source != "" && !models.ValidSource(filters.Source) {
		return nil, 0, fmt.Errorf("%w: unrecognized source %q", apperrors.ErrValidation, filters.Source)
	}
	if filters.Status != "" && !models.ValidStatus(filters.Status) {
		return nil, 0, fmt.Errorf("%w: unrecognized status %q", apperrors.ErrValidation, filters.Status)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 {
		filters.Limit = s.cfg.CRM.DefaultPageSize
	}
	if filters.Limit > s.cfg.CRM.MaxPageSize {
		filters.Limit = s.cfg.CRM.MaxPageSize
	}

	leads, total, err := s.leads.List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return leads, total, nil
}

func (s *leadService) Update(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error) {
	if upd.Empty() {
		return nil, fmt.Errorf("%w: no updatable fields provided", apperrors.ErrValidation)
	}
	if upd.Status != nil && !models.ValidStatus(*upd.Status) {
		return nil, fmt.Errorf("%w: unrecognized status %q", apperrors.ErrValidation, *upd.Status)
	}

	var previousStatus string
	if upd.Status != nil {
		current, err := s.leads.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("update lead: %w", err)
		}
		previousStatus = current.Status
	}

	lead, err := s.leads.Update(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}

	if upd.Status != nil && *upd.Status != previousStatus {
		s.appendActivity(ctx, &models.Activity{
			LeadID:    lead.ID,
			Type:      models.ActivitySystem,
			Title:     fmt.Sprintf("Status changed to %s", *upd.Status),
			ActorType: models.ActorSystem,
			Metadata: map[string]any{
				"from": previousStatus,
				"to":   *upd.Status,
			},
		})
	}

	return lead, nil
}

func (s *leadService) ChangeStage(ctx context.Context, id uuid.UUID, stage string) (*models.Lead, bool, error) {
	if !models.ValidStage(stage) {
		return nil, false, fmt.Errorf("%w: unrecognized stage %q", apperrors.ErrValidation, stage)
	}

	lead, fromStage, changed, err := s.leads.ChangeStage(ctx, id, stage)
	if err != nil {
		return nil, false, fmt.Errorf("change stage: %w", err)
	}
	if !changed {
		return lead, false, nil
	}

	s.appendActivity(ctx, &models.Activity{
		LeadID:    lead.ID,
		Type:      models.ActivityStageChange,
		Title:     fmt.Sprintf("Status changed to %s", stage),
		ActorType: models.ActorSystem,
		Metadata: map[string]any{
			"from": fromStage,
			"to":   stage,
		},
	})

	return lead, true, nil
}

func (s *leadService) Delete(ctx context.Context, id uuid.UUID, permanent bool) error {
	if permanent {
		if err := s.leads.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete lead: %w", err)
		}
		return nil
	}

	if err := s.leads.Archive(ctx, id); err != nil {
		return fmt.Errorf("archive lead: %w", err)
	}

	s.appendActivity(ctx, &models.Activity{
		LeadID:    id,
		Type:      models.ActivitySystem,
		Title:     "Lead archived",
		ActorType: models.ActorSystem,
	})

	return nil
}

// appendActivity records an activity for an already-committed lead mutation.
// Failures are logged and swallowed; lead data integrity takes priority over
// audit completeness.
func (s *leadService) appendActivity(ctx context.Context, activity *models.Activity) {
	if err := s.activities.Create(ctx, activity); err != nil {
		s.logger.Error("Failed to append activity",
			zap.String("lead_id", activity.LeadID.String()),
			zap.String("type", activity.Type),
			zap.String("error", logging.SanitizeError(err)))
	}
}
