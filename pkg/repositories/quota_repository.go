package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ideaforge/pkg/database"
	"github.com/ekaya-inc/ideaforge/pkg/models"
)

// QuotaRepository provides atomic access to per-user idea quotas.
// Rows are created lazily with defaultMax as the allowance.
type QuotaRepository interface {
	// TryIncrement adds one to the user's count if the user is premium or
	// below the limit, as a single conditional write. It returns the record
	// after the attempt and whether the increment happened.
	TryIncrement(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, bool, error)
	// Decrement subtracts one, never going below zero.
	Decrement(ctx context.Context, userID string) (*models.QuotaRecord, error)
	Get(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, error)
}

type quotaRepository struct{}

// NewQuotaRepository creates a PostgreSQL QuotaRepository.
func NewQuotaRepository() QuotaRepository {
	return &quotaRepository{}
}

var _ QuotaRepository = (*quotaRepository)(nil)

const quotaColumns = `user_id, idea_count, max_ideas, premium, created_at, updated_at`

func ensureQuotaRow(ctx context.Context, scope *database.UserScope, userID string, defaultMax int) error {
	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO quotas (user_id, idea_count, max_ideas, premium)
		VALUES ($1, 0, $2, false)
		ON CONFLICT (user_id) DO NOTHING`, userID, defaultMax)
	if err != nil {
		return fmt.Errorf("failed to ensure quota row: %w", err)
	}
	return nil
}

func (r *quotaRepository) TryIncrement(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, bool, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, false, database.ErrNoUserScope
	}

	if err := ensureQuotaRow(ctx, scope, userID, defaultMax); err != nil {
		return nil, false, err
	}

	// The WHERE clause is re-evaluated against the locked row, so concurrent
	// increments cannot both pass the limit check.
	query := `
		UPDATE quotas
		SET idea_count = idea_count + 1, updated_at = NOW()
		WHERE user_id = $1 AND (premium OR idea_count < max_ideas)
		RETURNING ` + quotaColumns

	rec, err := scanQuota(scope.Conn.QueryRow(ctx, query, userID))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to increment quota: %w", err)
	}

	rec, err = scanQuota(scope.Conn.QueryRow(ctx,
		`SELECT `+quotaColumns+` FROM quotas WHERE user_id = $1`, userID))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read quota: %w", err)
	}
	return rec, false, nil
}

func (r *quotaRepository) Decrement(ctx context.Context, userID string) (*models.QuotaRecord, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	query := `
		UPDATE quotas
		SET idea_count = GREATEST(idea_count - 1, 0), updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + quotaColumns

	rec, err := scanQuota(scope.Conn.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Nothing was ever reserved for this user.
			return &models.QuotaRecord{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to decrement quota: %w", err)
	}
	return rec, nil
}

func (r *quotaRepository) Get(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	if err := ensureQuotaRow(ctx, scope, userID, defaultMax); err != nil {
		return nil, err
	}

	rec, err := scanQuota(scope.Conn.QueryRow(ctx,
		`SELECT `+quotaColumns+` FROM quotas WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read quota: %w", err)
	}
	return rec, nil
}

func scanQuota(row pgx.Row) (*models.QuotaRecord, error) {
	var q models.QuotaRecord
	if err := row.Scan(&q.UserID, &q.IdeaCount, &q.MaxIdeas, &q.Premium, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
