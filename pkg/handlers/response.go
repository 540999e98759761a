package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/northfork-studio/crm-engine/pkg/apperrors"
	"github.com/northfork-studio/crm-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError translates a service-layer error into an HTTP error response:
// validation failures map to 400, missing leads to 404, everything else to
// 500 with the detail kept server-side.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error, internalMessage string) {
	var writeErr error
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		writeErr = ErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", "Lead not found")
	default:
		logger.Error(internalMessage, zap.String("error", logging.SanitizeError(err)))
		writeErr = ErrorResponse(w, http.StatusInternalServerError, "internal_error", internalMessage)
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
