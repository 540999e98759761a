package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/config"
	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/repositories"
)

// DashboardService computes read-only rollups over the lead store. Every
// result is a snapshot taken at request time; there is no cached state that
// could drift from the source of truth.
type DashboardService interface {
	// Compute returns the requested widgets keyed by widget name. An empty
	// widget list means all widgets.
	Compute(ctx context.Context, widgets []string) (map[string]any, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

type dashboardService struct {
	repo   repositories.DashboardRepository
	cfg    *config.Config
	logger *zap.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo repositories.DashboardRepository, cfg *config.Config, logger *zap.Logger) DashboardService {
	return &dashboardService{
		repo:   repo,
		cfg:    cfg,
		logger: logger.Named("dashboard-service"),
	}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) Compute(ctx context.Context, widgets []string) (map[string]any, error) {
	if len(widgets) == 0 {
		widgets = []string{
			models.WidgetStages,
			models.WidgetSources,
			models.WidgetScores,
			models.WidgetConversion,
			models.WidgetOverdue,
		}
	}

	result := make(map[string]any, len(widgets))
	for _, widget := range widgets {
		if !models.ValidWidget(widget) {
			return nil, fmt.Errorf("%w: unrecognized widget %q", apperrors.ErrValidation, widget)
		}
		if _, done := result[widget]; done {
			continue
		}

		switch widget {
		case models.WidgetStages:
			stages, err := s.repo.CountByStage(ctx)
			if err != nil {
				return nil, fmt.Errorf("compute stages widget: %w", err)
			}
			result[widget] = stages
		case models.WidgetSources:
			sources, err := s.repo.CountBySource(ctx)
			if err != nil {
				return nil, fmt.Errorf("compute sources widget: %w", err)
			}
			result[widget] = sources
		case models.WidgetScores:
			buckets, err := s.repo.ScoreBuckets(ctx)
			if err != nil {
				return nil, fmt.Errorf("compute scores widget: %w", err)
			}
			result[widget] = buckets
		case models.WidgetConversion:
			won, lost, err := s.repo.WonLost(ctx)
			if err != nil {
				return nil, fmt.Errorf("compute conversion widget: %w", err)
			}
			result[widget] = conversionRate(won, lost)
		case models.WidgetOverdue:
			stale, err := s.staleLeads(ctx)
			if err != nil {
				return nil, fmt.Errorf("compute overdue widget: %w", err)
			}
			result[widget] = stale
		}
	}

	return result, nil
}

func (s *dashboardService) Stats(ctx context.Context) (*models.Stats, error) {
	total, clients, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	won, lost, err := s.repo.WonLost(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	stale, err := s.staleLeads(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	return &models.Stats{
		TotalLeads:     total,
		TotalClients:   clients,
		WonCount:       won,
		LostCount:      lost,
		ConversionRate: conversionRate(won, lost),
		StaleLeads:     stale,
	}, nil
}

func (s *dashboardService) staleLeads(ctx context.Context) ([]*models.Lead, error) {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.CRM.StaleAfterDays)
	return s.repo.StaleLeads(ctx, cutoff, s.cfg.CRM.StaleLeadLimit)
}

// conversionRate is won / (won + lost), and 0 when nothing has closed yet.
func conversionRate(won, lost int) float64 {
	if won+lost == 0 {
		return 0
	}
	return float64(won) / float64(won+lost)
}
