package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// GenerationsResponse lists provenance records.
type GenerationsResponse struct {
	Generations []*models.GenerationRecord `json:"generations"`
}

// GenerationsHandler exposes code generation history.
type GenerationsHandler struct {
	generations services.GenerationService
	logger      *zap.Logger
}

// NewGenerationsHandler creates a new generations handler.
func NewGenerationsHandler(generations services.GenerationService, logger *zap.Logger) *GenerationsHandler {
	return &GenerationsHandler{generations: generations, logger: logger}
}

// RegisterRoutes registers the generations handler's routes on the given mux.
func (h *GenerationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/generations", authMiddleware.RequireAuth(scope(h.List)))
}

// List handles GET /api/generations
func (h *GenerationsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	records, err := h.generations.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list generations", h.logger)
		return
	}
	if records == nil {
		records = []*models.GenerationRecord{}
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: GenerationsResponse{Generations: records}}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
