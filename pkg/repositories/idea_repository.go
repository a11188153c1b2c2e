package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/database"
	"github.com/ekaya-inc/ideaforge/pkg/models"
)

// IdeaFlags carries the optional user-controlled flags of an idea.
// Nil fields are left unchanged.
type IdeaFlags struct {
	Liked    *bool
	Selected *bool
}

// IdeaRepository provides data access for ideas.
// Every method is restricted to ideas owned by ownerID.
type IdeaRepository interface {
	// CreateBatch inserts all ideas in one transaction: either every idea is
	// stored or none is.
	CreateBatch(ctx context.Context, ideas []*models.Idea) error
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*models.Idea, error)
	// GetByIDs returns the owned ideas among ids, in no particular order.
	// Missing or foreign ids are silently absent from the result.
	GetByIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*models.Idea, error)
	UpdateFlags(ctx context.Context, ownerID string, id uuid.UUID, flags IdeaFlags) (*models.Idea, error)
	List(ctx context.Context, ownerID string) ([]*models.Idea, error)
	ListLiked(ctx context.Context, ownerID string) ([]*models.Idea, error)
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	MarkProcessed(ctx context.Context, ownerID string, ids []uuid.UUID) error
}

type ideaRepository struct{}

// NewIdeaRepository creates a PostgreSQL IdeaRepository.
func NewIdeaRepository() IdeaRepository {
	return &ideaRepository{}
}

var _ IdeaRepository = (*ideaRepository)(nil)

const ideaColumns = `
	id, owner_id, batch_id, keyword, name, tagline, description,
	tech_stack, key_features, revenue_model, problem_solved, solution, competitive_advantage,
	is_liked, is_selected, source, status, created_at, updated_at`

func (r *ideaRepository) CreateBatch(ctx context.Context, ideas []*models.Idea) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return database.ErrNoUserScope
	}
	if len(ideas) == 0 {
		return nil
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		INSERT INTO ideas (` + ideaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, idea := range ideas {
		if idea.ID == uuid.Nil {
			idea.ID = uuid.New()
		}
		if idea.Status == "" {
			idea.Status = models.IdeaStatusNew
		}
		idea.CreatedAt = now
		idea.UpdatedAt = now

		batch.Queue(query,
			idea.ID, idea.OwnerID, idea.BatchID, idea.Keyword,
			idea.Name, idea.Tagline, idea.Description,
			jsonList(idea.TechStack), jsonList(idea.KeyFeatures), jsonList(idea.RevenueModel),
			jsonList(idea.ProblemSolved), jsonList(idea.Solution), jsonList(idea.CompetitiveAdvantage),
			idea.IsLiked, idea.IsSelected, idea.Source, idea.Status,
			idea.CreatedAt, idea.UpdatedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range ideas {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return apperrors.ErrConflict
			}
			return fmt.Errorf("failed to insert idea: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert ideas: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *ideaRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*models.Idea, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE id = $1 AND owner_id = $2`

	idea, err := scanIdea(scope.Conn.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get idea: %w", err)
	}

	return idea, nil
}

func (r *ideaRepository) GetByIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*models.Idea, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	if len(ids) == 0 {
		return []*models.Idea{}, nil
	}

	query := `SELECT ` + ideaColumns + ` FROM ideas WHERE id = ANY($1) AND owner_id = $2`

	rows, err := scope.Conn.Query(ctx, query, ids, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ideas: %w", err)
	}
	defer rows.Close()

	return scanIdeaRows(rows)
}

func (r *ideaRepository) UpdateFlags(ctx context.Context, ownerID string, id uuid.UUID, flags IdeaFlags) (*models.Idea, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	query := `
		UPDATE ideas
		SET is_liked = COALESCE($3, is_liked),
		    is_selected = COALESCE($4, is_selected),
		    updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + ideaColumns

	idea, err := scanIdea(scope.Conn.QueryRow(ctx, query, id, ownerID, flags.Liked, flags.Selected))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update idea: %w", err)
	}

	return idea, nil
}

func (r *ideaRepository) List(ctx context.Context, ownerID string) ([]*models.Idea, error) {
	return r.list(ctx, ownerID, false)
}

func (r *ideaRepository) ListLiked(ctx context.Context, ownerID string) ([]*models.Idea, error) {
	return r.list(ctx, ownerID, true)
}

func (r *ideaRepository) list(ctx context.Context, ownerID string, likedOnly bool) ([]*models.Idea, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	query := `
		SELECT ` + ideaColumns + `
		FROM ideas
		WHERE owner_id = $1 AND ($2 = false OR is_liked)
		ORDER BY created_at DESC, name`

	rows, err := scope.Conn.Query(ctx, query, ownerID, likedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	defer rows.Close()

	return scanIdeaRows(rows)
}

func (r *ideaRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return database.ErrNoUserScope
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM ideas WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete idea: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *ideaRepository) MarkProcessed(ctx context.Context, ownerID string, ids []uuid.UUID) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return database.ErrNoUserScope
	}

	if len(ids) == 0 {
		return nil
	}

	_, err := scope.Conn.Exec(ctx, `
		UPDATE ideas SET status = $3, updated_at = NOW()
		WHERE id = ANY($1) AND owner_id = $2`,
		ids, ownerID, models.IdeaStatusProcessed)
	if err != nil {
		return fmt.Errorf("failed to mark ideas processed: %w", err)
	}

	return nil
}

func scanIdea(row pgx.Row) (*models.Idea, error) {
	var idea models.Idea
	err := row.Scan(
		&idea.ID, &idea.OwnerID, &idea.BatchID, &idea.Keyword,
		&idea.Name, &idea.Tagline, &idea.Description,
		&idea.TechStack, &idea.KeyFeatures, &idea.RevenueModel,
		&idea.ProblemSolved, &idea.Solution, &idea.CompetitiveAdvantage,
		&idea.IsLiked, &idea.IsSelected, &idea.Source, &idea.Status,
		&idea.CreatedAt, &idea.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeIdeaLists(&idea)
	return &idea, nil
}

func scanIdeaRows(rows pgx.Rows) ([]*models.Idea, error) {
	ideas := make([]*models.Idea, 0)
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan idea: %w", err)
		}
		ideas = append(ideas, idea)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ideas: %w", err)
	}
	return ideas, nil
}

// normalizeIdeaLists replaces nil lists so that JSON output is [] rather than null.
func normalizeIdeaLists(idea *models.Idea) {
	for _, list := range []*[]string{
		&idea.TechStack, &idea.KeyFeatures, &idea.RevenueModel,
		&idea.ProblemSolved, &idea.Solution, &idea.CompetitiveAdvantage,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
}

// jsonList keeps empty lists as '[]' rather than JSON null in jsonb columns.
func jsonList(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
