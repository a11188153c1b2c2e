package database

import (
	"context"
)

type contextKey string

const (
	// UserScopeKey is the context key for storing the user-scoped database connection.
	UserScopeKey contextKey = "userScope"
)

// GetUserScope retrieves the user-scoped database connection from context.
// Returns nil and false if not present.
func GetUserScope(ctx context.Context) (*UserScope, bool) {
	scope, ok := ctx.Value(UserScopeKey).(*UserScope)
	return scope, ok
}

// SetUserScope stores the user-scoped database connection in context.
func SetUserScope(ctx context.Context, scope *UserScope) context.Context {
	return context.WithValue(ctx, UserScopeKey, scope)
}

// ScopeProvider creates user-scoped contexts for store operations.
type ScopeProvider interface {
	// WithUserScope returns a context carrying the user's scope. The cleanup
	// function must be called when the scope is no longer needed.
	WithUserScope(ctx context.Context, userID string) (context.Context, func(), error)
}

// UserScopeProvider creates user-scoped contexts backed by PostgreSQL.
type UserScopeProvider struct {
	db *DB
}

// NewUserScopeProvider creates a UserScopeProvider for the given database.
func NewUserScopeProvider(db *DB) *UserScopeProvider {
	return &UserScopeProvider{db: db}
}

// WithUserScope implements ScopeProvider.
func (p *UserScopeProvider) WithUserScope(ctx context.Context, userID string) (context.Context, func(), error) {
	scope, err := p.db.WithUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return SetUserScope(ctx, scope), func() { scope.Close() }, nil
}

// NoopScopeProvider is used with the in-memory store, which filters by owner itself.
type NoopScopeProvider struct{}

// WithUserScope implements ScopeProvider.
func (NoopScopeProvider) WithUserScope(ctx context.Context, _ string) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

var (
	_ ScopeProvider = (*UserScopeProvider)(nil)
	_ ScopeProvider = NoopScopeProvider{}
)
