package mcpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/auth"
)

// mockAuthService is a mock implementation of auth.AuthService for testing.
type mockAuthService struct {
	claims      *auth.Claims
	token       string
	validateErr error
	subjectErr  error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireSubject(claims *auth.Claims) error {
	return m.subjectErr
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}}
	authService := &mockAuthService{claims: claims, token: "test-token"}
	middleware := NewMiddleware(authService, zap.NewNop())

	var handlerCalled bool
	var ctxUserID, ctxToken string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		ctxUserID = auth.GetUserIDFromContext(r.Context())
		ctxToken, _ = auth.GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()

	middleware.RequireAuth(handler).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if ctxUserID != "user-123" {
		t.Errorf("expected user-123 in context, got %q", ctxUserID)
	}
	if ctxToken != "test-token" {
		t.Errorf("expected token in context, got %q", ctxToken)
	}
}

func TestMiddleware_RequireAuth_InvalidToken(t *testing.T) {
	authService := &mockAuthService{validateErr: errors.New("token expired")}
	middleware := NewMiddleware(authService, zap.NewNop())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()

	middleware.RequireAuth(handler).ServeHTTP(rec, req)

	if handlerCalled {
		t.Error("expected handler not to be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	wwwAuth := rec.Header().Get("WWW-Authenticate")
	if !strings.HasPrefix(wwwAuth, "Bearer ") {
		t.Errorf("expected Bearer challenge, got %q", wwwAuth)
	}
	if !strings.Contains(wwwAuth, `error="invalid_token"`) {
		t.Errorf("expected invalid_token error, got %q", wwwAuth)
	}
}

func TestMiddleware_RequireAuth_MissingSubject(t *testing.T) {
	authService := &mockAuthService{
		claims:     &auth.Claims{},
		token:      "test-token",
		subjectErr: auth.ErrMissingSubject,
	}
	middleware := NewMiddleware(authService, zap.NewNop())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()

	middleware.RequireAuth(handler).ServeHTTP(rec, req)

	if handlerCalled {
		t.Error("expected handler not to be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), "does not identify a user") {
		t.Errorf("unexpected challenge: %q", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestWriteWWWAuthenticate_Format(t *testing.T) {
	middleware := NewMiddleware(&mockAuthService{}, zap.NewNop())
	rec := httptest.NewRecorder()

	middleware.writeWWWAuthenticate(rec, http.StatusUnauthorized, "invalid_token", "expired")

	want := `Bearer error="invalid_token", error_description="expired"`
	if got := rec.Header().Get("WWW-Authenticate"); got != want {
		t.Errorf("WWW-Authenticate = %q, want %q", got, want)
	}
}
