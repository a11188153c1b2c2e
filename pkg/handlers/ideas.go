package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// CreateIdeasRequest is the body of POST /api/ideas.
type CreateIdeasRequest struct {
	Keyword     string         `json:"keyword"`
	Preferences map[string]any `json:"preferences,omitempty"`
}

// UpdateIdeaRequest is the body of PATCH /api/ideas/{id}.
// Omitted flags are left unchanged.
type UpdateIdeaRequest struct {
	Liked    *bool `json:"liked,omitempty"`
	Selected *bool `json:"selected,omitempty"`
}

// IdeasResponse wraps a list of ideas.
type IdeasResponse struct {
	Ideas []*models.Idea `json:"ideas"`
	Total int            `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// IdeasHandler handles idea creation and management.
type IdeasHandler struct {
	ideation services.IdeationService
	ideas    services.IdeaService
	logger   *zap.Logger
}

// NewIdeasHandler creates a new ideas handler.
func NewIdeasHandler(ideation services.IdeationService, ideas services.IdeaService, logger *zap.Logger) *IdeasHandler {
	return &IdeasHandler{
		ideation: ideation,
		ideas:    ideas,
		logger:   logger,
	}
}

// RegisterRoutes registers the ideas handler's routes on the given mux.
func (h *IdeasHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	base := "/api/ideas"
	mux.HandleFunc("POST "+base, authMiddleware.RequireAuth(scope(h.Create)))
	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(scope(h.List)))
	mux.HandleFunc("GET "+base+"/liked", authMiddleware.RequireAuth(scope(h.ListLiked)))
	mux.HandleFunc("GET "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Get)))
	mux.HandleFunc("PATCH "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Update)))
	mux.HandleFunc("DELETE "+base+"/{id}", authMiddleware.RequireAuth(scope(h.Delete)))
}

// Create handles POST /api/ideas
func (h *IdeasHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateIdeasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "keyword is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	ideas, err := h.ideation.CreateIdeas(r.Context(), userID, req.Keyword, req.Preferences)
	if err != nil {
		writeServiceError(w, err, "create ideas", h.logger)
		return
	}

	response := ApiResponse{
		Success: true,
		Data:    IdeasResponse{Ideas: ideas, Total: len(ideas)},
	}
	if err := WriteJSON(w, http.StatusCreated, response); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// List handles GET /api/ideas
func (h *IdeasHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	ideas, err := h.ideas.ListIdeas(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list ideas", h.logger)
		return
	}
	h.writeIdeas(w, ideas)
}

// ListLiked handles GET /api/ideas/liked
func (h *IdeasHandler) ListLiked(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}

	ideas, err := h.ideas.ListLiked(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "list liked ideas", h.logger)
		return
	}
	h.writeIdeas(w, ideas)
}

// Get handles GET /api/ideas/{id}
func (h *IdeasHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	ideaID, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	idea, err := h.ideas.GetIdea(r.Context(), userID, ideaID)
	if err != nil {
		writeServiceError(w, err, "get idea", h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: idea}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Update handles PATCH /api/ideas/{id}
func (h *IdeasHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	ideaID, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	idea, err := h.ideas.UpdateFlags(r.Context(), userID, ideaID, repositories.IdeaFlags{
		Liked:    req.Liked,
		Selected: req.Selected,
	})
	if err != nil {
		writeServiceError(w, err, "update idea", h.logger)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: idea}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Delete handles DELETE /api/ideas/{id}
func (h *IdeasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r, h.logger)
	if !ok {
		return
	}
	ideaID, ok := ParseIdeaID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ideas.DeleteIdea(r.Context(), userID, ideaID); err != nil {
		writeServiceError(w, err, "delete idea", h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IdeasHandler) writeIdeas(w http.ResponseWriter, ideas []*models.Idea) {
	if ideas == nil {
		ideas = []*models.Idea{}
	}
	response := ApiResponse{
		Success: true,
		Data:    IdeasResponse{Ideas: ideas, Total: len(ideas)},
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
