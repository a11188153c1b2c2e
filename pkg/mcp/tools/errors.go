package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a successful tool result so the calling model can read
// the error details and adjust its next call.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad arguments, unknown idea,
// exhausted quota). System failures are returned as Go errors instead.
//
// Example:
//
//	if len(ids) == 0 {
//	    return NewErrorResult("invalid_input", "idea_ids must not be empty"), nil
//	}
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
//
// Example:
//
//	return NewErrorResultWithDetails(
//	    "quota_exceeded",
//	    "quota exceeded: 6 of 6 ideas used",
//	    map[string]any{"current": 6, "max": 6},
//	), nil
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// serviceErrorResult converts a service error into a tool result when the
// caller can act on it. It returns nil for system failures, which the tool
// handler should return as a Go error.
func serviceErrorResult(err error) *mcp.CallToolResult {
	if qe, ok := apperrors.AsQuotaExceeded(err); ok {
		return NewErrorResultWithDetails("quota_exceeded", qe.Error(), map[string]any{
			"current": qe.Current,
			"max":     qe.Max,
		})
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return NewErrorResult("not_found", err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return NewErrorResult("invalid_input", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return NewErrorResult("conflict", err.Error())
	}
	return nil
}

// inputErrorPatterns are substrings of argument errors raised by mcp-go.
var inputErrorPatterns = []string{
	"required argument",
	"not found",
	"is not a",
	"invalid",
}

// IsInputError returns true if the error was caused by caller input rather
// than a server failure. Input errors should be logged at DEBUG level.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, apperrors.ErrInvalidInput) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrQuotaExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range inputErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
