package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/auth"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
	"github.com/ekaya-inc/ideaforge/pkg/services"
)

// withUser attaches claims for userID the way auth.Middleware would.
func withUser(req *http.Request, userID string) *http.Request {
	ctx := auth.WithClaims(req.Context(), &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}, "test-token")
	return req.WithContext(ctx)
}

func newJSONRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// passthroughScope stands in for database.WithUserContext.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc { return next }

// stubAuthService accepts any request carrying an Authorization header and
// treats the bearer value as the subject.
type stubAuthService struct{}

func (stubAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return nil, "", auth.ErrMissingAuthorization
	}
	return &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: token}}, token, nil
}

func (stubAuthService) RequireSubject(claims *auth.Claims) error {
	if claims.Subject == "" {
		return auth.ErrMissingSubject
	}
	return nil
}

type mockIdeationService struct {
	createFunc func(ctx context.Context, userID, keyword string, prefs map[string]any) ([]*models.Idea, error)
}

func (m *mockIdeationService) CreateIdeas(ctx context.Context, userID, keyword string, prefs map[string]any) ([]*models.Idea, error) {
	return m.createFunc(ctx, userID, keyword, prefs)
}

// mockIdeaService keeps ideas in a map keyed by id.
type mockIdeaService struct {
	ideas     map[uuid.UUID]*models.Idea
	deleteErr error
	deleted   []uuid.UUID
}

func newMockIdeaService(ideas ...*models.Idea) *mockIdeaService {
	m := &mockIdeaService{ideas: make(map[uuid.UUID]*models.Idea)}
	for _, idea := range ideas {
		m.ideas[idea.ID] = idea
	}
	return m
}

func (m *mockIdeaService) owned(userID string, id uuid.UUID) (*models.Idea, error) {
	idea, ok := m.ideas[id]
	if !ok || idea.OwnerID != userID {
		return nil, apperrors.ErrNotFound
	}
	return idea, nil
}

func (m *mockIdeaService) LikeIdea(ctx context.Context, userID string, id uuid.UUID, liked bool) (*models.Idea, error) {
	return m.UpdateFlags(ctx, userID, id, repositories.IdeaFlags{Liked: &liked})
}

func (m *mockIdeaService) SelectIdea(ctx context.Context, userID string, id uuid.UUID, selected bool) (*models.Idea, error) {
	return m.UpdateFlags(ctx, userID, id, repositories.IdeaFlags{Selected: &selected})
}

func (m *mockIdeaService) UpdateFlags(ctx context.Context, userID string, id uuid.UUID, flags repositories.IdeaFlags) (*models.Idea, error) {
	if flags.Liked == nil && flags.Selected == nil {
		return nil, apperrors.ErrInvalidInput
	}
	idea, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if flags.Liked != nil {
		idea.IsLiked = *flags.Liked
	}
	if flags.Selected != nil {
		idea.IsSelected = *flags.Selected
	}
	return idea, nil
}

func (m *mockIdeaService) GetIdea(ctx context.Context, userID string, id uuid.UUID) (*models.Idea, error) {
	return m.owned(userID, id)
}

func (m *mockIdeaService) ListIdeas(ctx context.Context, userID string) ([]*models.Idea, error) {
	var out []*models.Idea
	for _, idea := range m.ideas {
		if idea.OwnerID == userID {
			out = append(out, idea)
		}
	}
	return out, nil
}

func (m *mockIdeaService) ListLiked(ctx context.Context, userID string) ([]*models.Idea, error) {
	var out []*models.Idea
	for _, idea := range m.ideas {
		if idea.OwnerID == userID && idea.IsLiked {
			out = append(out, idea)
		}
	}
	return out, nil
}

func (m *mockIdeaService) DeleteIdea(ctx context.Context, userID string, id uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, err := m.owned(userID, id); err != nil {
		return err
	}
	delete(m.ideas, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockCodegenService struct {
	generateFunc func(ctx context.Context, userID string, ids []uuid.UUID) ([]*models.CodeArtifact, error)
}

func (m *mockCodegenService) GenerateArtifacts(ctx context.Context, userID string, ids []uuid.UUID) ([]*models.CodeArtifact, error) {
	return m.generateFunc(ctx, userID, ids)
}

type mockGenerationService struct {
	records []*models.GenerationRecord
	err     error
}

func (m *mockGenerationService) List(ctx context.Context, userID string) ([]*models.GenerationRecord, error) {
	return m.records, m.err
}

var (
	_ services.IdeationService   = (*mockIdeationService)(nil)
	_ services.IdeaService       = (*mockIdeaService)(nil)
	_ services.CodegenService    = (*mockCodegenService)(nil)
	_ services.GenerationService = (*mockGenerationService)(nil)
	_ auth.AuthService           = stubAuthService{}
)
