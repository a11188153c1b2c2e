package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
)

// ApiResponse is the envelope for successful JSON responses.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// QuotaErrorResponse is written when a user has no ideation quota left.
type QuotaErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Current int    `json:"current"`
	Max     int    `json:"max"`
}

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
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto an HTTP status and error code.
// Unknown errors are logged and reported as 500 without leaking details.
func writeServiceError(w http.ResponseWriter, err error, action string, logger *zap.Logger) {
	var writeErr error
	if qe, ok := apperrors.AsQuotaExceeded(err); ok {
		writeErr = WriteJSON(w, http.StatusForbidden, QuotaErrorResponse{
			Error:   "quota_exceeded",
			Message: qe.Error(),
			Current: qe.Current,
			Max:     qe.Max,
		})
	} else {
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			writeErr = ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
		case errors.Is(err, apperrors.ErrNotFound):
			writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", "Idea not found")
		case errors.Is(err, apperrors.ErrUnauthenticated):
			writeErr = ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		case errors.Is(err, apperrors.ErrConflict):
			writeErr = ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
		default:
			logger.Error("Failed to "+action, zap.Error(err))
			writeErr = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to "+action)
		}
	}
	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
