package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/services"
)

// ActivitiesHandler handles activity log HTTP requests.
type ActivitiesHandler struct {
	activityService services.ActivityService
	logger          *zap.Logger
}

// NewActivitiesHandler creates a new activities handler.
func NewActivitiesHandler(activityService services.ActivityService, logger *zap.Logger) *ActivitiesHandler {
	return &ActivitiesHandler{
		activityService: activityService,
		logger:          logger,
	}
}

// RegisterRoutes registers the activities handler's routes on the given mux.
func (h *ActivitiesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/leads/{id}/activities", h.List)
	mux.HandleFunc("POST /api/leads/{id}/activities", h.Record)
}

// RecordActivityRequest is the request body for appending an activity.
type RecordActivityRequest struct {
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	ActorType   string         `json:"actor_type"`
	ActorName   string         `json:"actor_name"`
}

// Record handles POST /api/leads/{id}/activities
func (h *ActivitiesHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	activity, err := h.activityService.Record(r.Context(), id, services.RecordActivityInput{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Metadata:    req.Metadata,
		ActorType:   req.ActorType,
		ActorName:   req.ActorName,
	})
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to record activity")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"activity": activity,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ActivityListResponse is the paginated response for activity listings.
type ActivityListResponse struct {
	Activities []*models.Activity `json:"activities"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
}

// List handles GET /api/leads/{id}/activities
// Returns the lead's activities newest first, optionally filtered by a
// comma-separated types parameter.
func (h *ActivitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	filters := models.ActivityFilters{
		Page:  queryInt(r, "page", 1),
		Limit: queryInt(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filters.Types = append(filters.Types, t)
			}
		}
	}

	activities, total, err := h.activityService.List(r.Context(), id, filters)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to list activities")
		return
	}
	if activities == nil {
		activities = []*models.Activity{}
	}

	if err := WriteJSON(w, http.StatusOK, ActivityListResponse{
		Activities: activities,
		Total:      total,
		Page:       filters.Page,
		Limit:      filters.Limit,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
