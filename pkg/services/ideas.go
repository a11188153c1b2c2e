package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

// IdeaService manages a user's saved ideas.
type IdeaService interface {
	// LikeIdea sets or clears the liked flag on an owned idea.
	LikeIdea(ctx context.Context, userID string, ideaID uuid.UUID, liked bool) (*models.Idea, error)

	// SelectIdea sets or clears the selected flag on an owned idea.
	SelectIdea(ctx context.Context, userID string, ideaID uuid.UUID, selected bool) (*models.Idea, error)

	// UpdateFlags applies whichever flags are non-nil in one write.
	UpdateFlags(ctx context.Context, userID string, ideaID uuid.UUID, flags repositories.IdeaFlags) (*models.Idea, error)

	GetIdea(ctx context.Context, userID string, ideaID uuid.UUID) (*models.Idea, error)

	// ListIdeas returns the user's ideas, newest first.
	ListIdeas(ctx context.Context, userID string) ([]*models.Idea, error)

	// ListLiked returns the user's liked ideas, newest first.
	ListLiked(ctx context.Context, userID string) ([]*models.Idea, error)

	// DeleteIdea removes an owned idea and gives one quota slot back.
	DeleteIdea(ctx context.Context, userID string, ideaID uuid.UUID) error
}

type ideaService struct {
	repo   repositories.IdeaRepository
	quota  QuotaService
	cache  ArtifactCache
	logger *zap.Logger
}

// NewIdeaService creates an IdeaService.
func NewIdeaService(repo repositories.IdeaRepository, quota QuotaService, cache ArtifactCache, logger *zap.Logger) IdeaService {
	if cache == nil {
		cache = NoopArtifactCache{}
	}
	return &ideaService{
		repo:   repo,
		quota:  quota,
		cache:  cache,
		logger: logger.Named("ideas"),
	}
}

var _ IdeaService = (*ideaService)(nil)

func (s *ideaService) LikeIdea(ctx context.Context, userID string, ideaID uuid.UUID, liked bool) (*models.Idea, error) {
	return s.UpdateFlags(ctx, userID, ideaID, repositories.IdeaFlags{Liked: &liked})
}

func (s *ideaService) SelectIdea(ctx context.Context, userID string, ideaID uuid.UUID, selected bool) (*models.Idea, error) {
	return s.UpdateFlags(ctx, userID, ideaID, repositories.IdeaFlags{Selected: &selected})
}

func (s *ideaService) UpdateFlags(ctx context.Context, userID string, ideaID uuid.UUID, flags repositories.IdeaFlags) (*models.Idea, error) {
	if flags.Liked == nil && flags.Selected == nil {
		return nil, fmt.Errorf("no flags to update: %w", apperrors.ErrInvalidInput)
	}

	idea, err := s.repo.UpdateFlags(ctx, userID, ideaID, flags)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to update idea flags",
			zap.String("user_id", userID),
			zap.String("idea_id", ideaID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to update idea: %w", err)
	}
	return idea, nil
}

func (s *ideaService) GetIdea(ctx context.Context, userID string, ideaID uuid.UUID) (*models.Idea, error) {
	return s.repo.GetByID(ctx, userID, ideaID)
}

func (s *ideaService) ListIdeas(ctx context.Context, userID string) ([]*models.Idea, error) {
	ideas, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	return ideas, nil
}

func (s *ideaService) ListLiked(ctx context.Context, userID string) ([]*models.Idea, error) {
	ideas, err := s.repo.ListLiked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked ideas: %w", err)
	}
	return ideas, nil
}

func (s *ideaService) DeleteIdea(ctx context.Context, userID string, ideaID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, ideaID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete idea: %w", err)
	}

	s.cache.Invalidate(ctx, ideaID)

	status, err := s.quota.Release(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.Info("Deleted idea",
		zap.String("user_id", userID),
		zap.String("idea_id", ideaID.String()),
		zap.Int("quota_current", status.Current))
	return nil
}
