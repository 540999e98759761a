package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/services"
)

// DashboardHandler serves the read-only rollup endpoints.
type DashboardHandler struct {
	dashboardService services.DashboardService
	logger           *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(dashboardService services.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
		logger:           logger,
	}
}

// RegisterRoutes registers the dashboard handler's routes on the given mux.
func (h *DashboardHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", h.Dashboard)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// Dashboard handles GET /api/dashboard?widgets=stages,sources,...
// With no widgets parameter every widget is computed.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	var widgets []string
	if raw := r.URL.Query().Get("widgets"); raw != "" {
		for _, widget := range strings.Split(raw, ",") {
			if widget = strings.TrimSpace(widget); widget != "" {
				widgets = append(widgets, widget)
			}
		}
	}

	result, err := h.dashboardService.Compute(r.Context(), widgets)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to compute dashboard")
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.Stats(r.Context())
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to compute stats")
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
