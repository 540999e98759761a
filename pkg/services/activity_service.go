package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/config"
	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/repositories"
)

// RecordActivityInput is the caller-supplied part of a new activity.
type RecordActivityInput struct {
	Type        string
	Title       string
	Description string
	Metadata    map[string]any
	ActorType   string
	ActorName   string
}

// ActivityService provides the append-only activity ledger for leads.
type ActivityService interface {
	// Record appends an activity to a lead's log. Recording an email_sent or
	// call activity also stamps the lead's last_contacted_at.
	Record(ctx context.Context, leadID uuid.UUID, input RecordActivityInput) (*models.Activity, error)
	List(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error)
}

type activityService struct {
	activities repositories.ActivityRepository
	leads      repositories.LeadRepository
	cfg        *config.Config
	logger     *zap.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(
	activities repositories.ActivityRepository,
	leads repositories.LeadRepository,
	cfg *config.Config,
	logger *zap.Logger,
) ActivityService {
	return &activityService{
		activities: activities,
		leads:      leads,
		cfg:        cfg,
		logger:     logger.Named("activity-service"),
	}
}

var _ ActivityService = (*activityService)(nil)

func (s *activityService) Record(ctx context.Context, leadID uuid.UUID, input RecordActivityInput) (*models.Activity, error) {
	if !models.ValidActivityType(input.Type) {
		return nil, fmt.Errorf("%w: unrecognized activity type %q", apperrors.ErrValidation, input.Type)
	}
	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", apperrors.ErrValidation)
	}
	if input.ActorType == "" {
		input.ActorType = models.ActorUser
	}
	if input.ActorType != models.ActorUser && input.ActorType != models.ActorSystem {
		return nil, fmt.Errorf("%w: unrecognized actor type %q", apperrors.ErrValidation, input.ActorType)
	}

	activity := &models.Activity{
		LeadID:      leadID,
		Type:        input.Type,
		Title:       input.Title,
		Description: input.Description,
		Metadata:    input.Metadata,
		ActorType:   input.ActorType,
		ActorName:   input.ActorName,
	}

	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("record activity: %w", err)
	}

	return activity, nil
}

func (s *activityService) List(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error) {
	for _, t := range filters.Types {
		if !models.ValidActivityType(t) {
			return nil, 0, fmt.Errorf("%w: unrecognized activity type %q", apperrors.ErrValidation, t)
		}
	}

	// A missing lead is a 404, not an empty log.
	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
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

	activities, total, err := s.activities.ListByLead(ctx, leadID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	return activities, total, nil
}
