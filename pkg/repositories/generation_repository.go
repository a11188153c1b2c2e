package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ideaforge/pkg/database"
	"github.com/ekaya-inc/ideaforge/pkg/models"
)

// GenerationRepository stores provenance records of code generation runs.
type GenerationRepository interface {
	Create(ctx context.Context, rec *models.GenerationRecord) error
	// ListByUser returns the user's records, newest first.
	ListByUser(ctx context.Context, userID string) ([]*models.GenerationRecord, error)
}

type generationRepository struct{}

// NewGenerationRepository creates a PostgreSQL GenerationRepository.
func NewGenerationRepository() GenerationRepository {
	return &generationRepository{}
}

var _ GenerationRepository = (*generationRepository)(nil)

func (r *generationRepository) Create(ctx context.Context, rec *models.GenerationRecord) error {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return database.ErrNoUserScope
	}

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO generations (
			id, user_id, idea_ids, project_name, files_generated,
			tech_stack, degraded_count, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.UserID, rec.IdeaIDs, rec.ProjectName, rec.FilesGenerated,
		jsonList(rec.TechStack), rec.DegradedCount, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation record: %w", err)
	}

	return nil
}

func (r *generationRepository) ListByUser(ctx context.Context, userID string) ([]*models.GenerationRecord, error) {
	scope, ok := database.GetUserScope(ctx)
	if !ok {
		return nil, database.ErrNoUserScope
	}

	rows, err := scope.Conn.Query(ctx, `
		SELECT id, user_id, idea_ids, project_name, files_generated,
		       tech_stack, degraded_count, generated_at
		FROM generations
		WHERE user_id = $1
		ORDER BY generated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation records: %w", err)
	}
	defer rows.Close()

	return scanGenerationRows(rows)
}

func scanGenerationRows(rows pgx.Rows) ([]*models.GenerationRecord, error) {
	records := make([]*models.GenerationRecord, 0)
	for rows.Next() {
		var rec models.GenerationRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.IdeaIDs, &rec.ProjectName, &rec.FilesGenerated,
			&rec.TechStack, &rec.DegradedCount, &rec.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation record: %w", err)
		}
		if rec.TechStack == nil {
			rec.TechStack = []string{}
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation records: %w", err)
	}
	return records, nil
}
