package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// GenerateCodeRequest is the body of POST /api/code.
type GenerateCodeRequest struct {
	IdeaIDs []uuid.UUID `json:"idea_ids"`
}

// GenerateCodeResponse carries one artifact per requested idea, in request order.
type GenerateCodeResponse struct {
	Artifacts []*models.CodeArtifact `json:"artifacts"`
	Degraded  int                    `json:"degraded"`
}

// CodeHandler handles code generation for saved ideas.
type CodeHandler struct {
	codegen services.CodegenService
	logger  *zap.Logger
}

// NewCodeHandler creates a new code generation handler.
func NewCodeHandler(codegen services.CodegenService, logger *zap.Logger) *CodeHandler {
	return &CodeHandler{codegen: codegen, logger: logger}
}

// RegisterRoutes registers the code handler's routes on the given mux.
func (h *CodeHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/code", authMiddleware.RequireAuth(scope(h.Generate)))
}

// Generate handles POST /api/code
func (h *CodeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.IdeaIDs) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "idea_ids is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	artifacts, err := h.codegen.GenerateArtifacts(r.Context(), userID, req.IdeaIDs)
	if err != nil {
		writeServiceError(w, err, "generate code", h.logger)
		return
	}

	resp := GenerateCodeResponse{Artifacts: artifacts}
	for _, a := range artifacts {
		if a.Degraded() {
			resp.Degraded++
		}
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
