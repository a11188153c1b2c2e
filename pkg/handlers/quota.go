package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// QuotaHandler reports the caller's ideation allowance.
type QuotaHandler struct {
	quota  services.QuotaService
	logger *zap.Logger
}

// NewQuotaHandler creates a new quota handler.
func NewQuotaHandler(quota services.QuotaService, logger *zap.Logger) *QuotaHandler {
	return &QuotaHandler{quota: quota, logger: logger}
}

// RegisterRoutes registers the quota handler's routes on the given mux.
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/quota", authMiddleware.RequireAuth(scope(h.Get)))
}

// Get handles GET /api/quota
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.quota.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "get quota", h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: status}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
