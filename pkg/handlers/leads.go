package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/jsonutil"
	"github.com/northfork-studio/crm-engine/pkg/models"
	"github.com/northfork-studio/crm-engine/pkg/services"
)

// LeadsHandler handles lead lifecycle HTTP requests.
type LeadsHandler struct {
	leadService services.LeadService
	logger      *zap.Logger
}

// NewLeadsHandler creates a new leads handler.
func NewLeadsHandler(leadService services.LeadService, logger *zap.Logger) *LeadsHandler {
	return &LeadsHandler{
		leadService: leadService,
		logger:      logger,
	}
}

// RegisterRoutes registers the leads handler's routes on the given mux.
func (h *LeadsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/leads", h.Submit)
	mux.HandleFunc("GET /api/leads", h.List)
	mux.HandleFunc("GET /api/leads/{id}", h.Get)
	mux.HandleFunc("PATCH /api/leads/{id}", h.Update)
	mux.HandleFunc("POST /api/leads/{id}/stage", h.ChangeStage)
	mux.HandleFunc("DELETE /api/leads/{id}", h.Delete)
}

// submissionRequest is the wire form of an inbound lead submission. Phone
// and attribution fields arrive as raw JSON because form builders and
// webhook relays send numbers where strings belong.
type submissionRequest struct {
	Email   string `json:"email"`
	Source  string `json:"source"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Website string `json:"website"`
	Notes   string `json:"notes"`

	Phone          json.RawMessage `json:"phone"`
	UTMSource      json.RawMessage `json:"utm_source"`
	UTMMedium      json.RawMessage `json:"utm_medium"`
	UTMCampaign    json.RawMessage `json:"utm_campaign"`
	UTMTerm        json.RawMessage `json:"utm_term"`
	UTMContent     json.RawMessage `json:"utm_content"`
	Referrer       string          `json:"referrer"`
	SourceURL      string          `json:"source_url"`
	ConversionPage string          `json:"conversion_page"`
}

func (req *submissionRequest) toSubmission() *models.LeadSubmission {
	return &models.LeadSubmission{
		Email:          req.Email,
		Source:         req.Source,
		Name:           req.Name,
		Phone:          jsonutil.FlexibleStringValue(req.Phone),
		Company:        req.Company,
		Website:        req.Website,
		Notes:          req.Notes,
		UTMSource:      jsonutil.FlexibleStringValue(req.UTMSource),
		UTMMedium:      jsonutil.FlexibleStringValue(req.UTMMedium),
		UTMCampaign:    jsonutil.FlexibleStringValue(req.UTMCampaign),
		UTMTerm:        jsonutil.FlexibleStringValue(req.UTMTerm),
		UTMContent:     jsonutil.FlexibleStringValue(req.UTMContent),
		Referrer:       req.Referrer,
		SourceURL:      req.SourceURL,
		ConversionPage: req.ConversionPage,
	}
}

// SubmitResponse is the response for lead submissions.
type SubmitResponse struct {
	Success bool         `json:"success"`
	Lead    *models.Lead `json:"lead"`
	IsNew   bool         `json:"isNew"`
}

// Submit handles POST /api/leads
// Runs an inbound submission through the upsert resolver: 201 when a new
// lead was created, 200 when the submission merged into an existing one.
func (h *LeadsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.leadService.Submit(r.Context(), req.toSubmission())
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to submit lead")
		return
	}

	status := http.StatusOK
	if result.IsNew {
		status = http.StatusCreated
	}

	if err := WriteJSON(w, status, SubmitResponse{
		Success: true,
		Lead:    result.Lead,
		IsNew:   result.IsNew,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListResponse is the paginated response for lead listings.
type ListResponse struct {
	Leads []*models.Lead `json:"leads"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// List handles GET /api/leads
// Supports stage/source/status/search/minScore/maxScore filters, a sort
// whitelist, and pagination.
func (h *LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.LeadFilters{
		Stage:     q.Get("stage"),
		Source:    q.Get("source"),
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		MinScore:  queryIntPtr(r, "minScore"),
		MaxScore:  queryIntPtr(r, "maxScore"),
		SortBy:    q.Get("sort"),
		SortOrder: q.Get("order"),
		Page:      queryInt(r, "page", 1),
		Limit:     queryInt(r, "limit", 0),
	}

	leads, total, err := h.leadService.List(r.Context(), filters)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to list leads")
		return
	}
	if leads == nil {
		leads = []*models.Lead{}
	}

	if err := WriteJSON(w, http.StatusOK, ListResponse{
		Leads: leads,
		Total: total,
		Page:  filters.Page,
		Limit: filters.Limit,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/leads/{id}
// Returns the lead with its activity log and stage history.
func (h *LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	detail, err := h.leadService.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to get lead")
		return
	}
	if detail.Activities == nil {
		detail.Activities = []*models.Activity{}
	}
	if detail.StageHistory == nil {
		detail.StageHistory = []*models.StageHistoryEntry{}
	}

	if err := WriteJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/leads/{id}
// Applies the allow-listed fields of the update; anything else in the
// payload is ignored by decoding into the typed update struct.
func (h *LeadsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	var upd models.LeadUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	lead, err := h.leadService.Update(r.Context(), id, &upd)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to update lead")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"lead":    lead,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ChangeStageRequest is the request body for stage transitions.
type ChangeStageRequest struct {
	Stage string `json:"stage"`
}

// ChangeStage handles POST /api/leads/{id}/stage
// Moves the lead through the pipeline. Requesting the current stage is a
// no-op and reports changed: false.
func (h *LeadsHandler) ChangeStage(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	var req ChangeStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	lead, changed, err := h.leadService.ChangeStage(r.Context(), id, req.Stage)
	if err != nil {
		ServiceError(w, h.logger, err, "Failed to change lead stage")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"lead":    lead,
		"changed": changed,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/leads/{id}?permanent=true|false
// Soft-archives by default; permanent=true removes the lead and cascades to
// its activities and stage history.
func (h *LeadsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseLeadID(w, r, h.logger)
	if !ok {
		return
	}

	permanent := r.URL.Query().Get("permanent") == "true"

	if err := h.leadService.Delete(r.Context(), id, permanent); err != nil {
		ServiceError(w, h.logger, err, "Failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
