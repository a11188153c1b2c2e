package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

// GenerationService exposes the provenance history of code generation.
type GenerationService interface {
	// List returns the user's generation records, newest first.
	List(ctx context.Context, userID string) ([]*models.GenerationRecord, error)
}

type generationService struct {
	repo   repositories.GenerationRepository
	logger *zap.Logger
}

// NewGenerationService creates a GenerationService.
func NewGenerationService(repo repositories.GenerationRepository, logger *zap.Logger) GenerationService {
	return &generationService{
		repo:   repo,
		logger: logger.Named("generations"),
	}
}

var _ GenerationService = (*generationService)(nil)

func (s *generationService) List(ctx context.Context, userID string) ([]*models.GenerationRecord, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list generations",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return records, nil
}
