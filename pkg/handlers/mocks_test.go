package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"

	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/services"
)

// mockLeadService implements services.LeadService through function fields so
// each test supplies only the behavior it exercises.
type mockLeadService struct {
	submitFunc      func(ctx context.Context, sub *models.LeadSubmission) (*models.UpsertResult, error)
	getFunc         func(ctx context.Context, id uuid.UUID) (*models.LeadDetail, error)
	listFunc        func(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error)
	updateFunc      func(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error)
	changeStageFunc func(ctx context.Context, id uuid.UUID, stage string) (*models.Lead, bool, error)
	deleteFunc      func(ctx context.Context, id uuid.UUID, permanent bool) error
}

var _ services.LeadService = (*mockLeadService)(nil)

func (m *mockLeadService) Submit(ctx context.Context, sub *models.LeadSubmission) (*models.UpsertResult, error) {
	return m.submitFunc(ctx, sub)
}

func (m *mockLeadService) Get(ctx context.Context, id uuid.UUID) (*models.LeadDetail, error) {
	return m.getFunc(ctx, id)
}

func (m *mockLeadService) List(ctx context.Context, filters models.LeadFilters) ([]*models.Lead, int, error) {
	return m.listFunc(ctx, filters)
}

func (m *mockLeadService) Update(ctx context.Context, id uuid.UUID, upd *models.LeadUpdate) (*models.Lead, error) {
	return m.updateFunc(ctx, id, upd)
}

func (m *mockLeadService) ChangeStage(ctx context.Context, id uuid.UUID, stage string) (*models.Lead, bool, error) {
	return m.changeStageFunc(ctx, id, stage)
}

func (m *mockLeadService) Delete(ctx context.Context, id uuid.UUID, permanent bool) error {
	return m.deleteFunc(ctx, id, permanent)
}

type mockActivityService struct {
	recordFunc func(ctx context.Context, leadID uuid.UUID, input services.RecordActivityInput) (*models.Activity, error)
	listFunc   func(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error)
}

var _ services.ActivityService = (*mockActivityService)(nil)

func (m *mockActivityService) Record(ctx context.Context, leadID uuid.UUID, input services.RecordActivityInput) (*models.Activity, error) {
	return m.recordFunc(ctx, leadID, input)
}

func (m *mockActivityService) List(ctx context.Context, leadID uuid.UUID, filters models.ActivityFilters) ([]*models.Activity, int, error) {
	return m.listFunc(ctx, leadID, filters)
}

type mockDashboardService struct {
	computeFunc func(ctx context.Context, widgets []string) (map[string]any, error)
	statsFunc   func(ctx context.Context) (*models.Stats, error)
}

var _ services.DashboardService = (*mockDashboardService)(nil)

func (m *mockDashboardService) Compute(ctx context.Context, widgets []string) (map[string]any, error) {
	return m.computeFunc(ctx, widgets)
}

func (m *mockDashboardService) Stats(ctx context.Context) (*models.Stats, error) {
	return m.statsFunc(ctx)
}

// serve routes a request through a mux so path parameters resolve the same
// way they do in production.
func serve(h interface{ RegisterRoutes(*http.ServeMux) }, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}
