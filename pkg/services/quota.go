package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

// settleTimeout bounds writes that must land even after the caller is gone.
const settleTimeout = 5 * time.Second

// settleContext keeps the values of ctx, including the user scope, but not
// its cancellation.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// Reservation is one quota slot taken by Reserve. It must end in exactly one
// of Commit or Cancel; further calls are no-ops.
type Reservation struct {
	UserID string
	Record *models.QuotaRecord // quota state right after the reservation

	mu   sync.Mutex
	done bool
}

// finish marks the reservation settled and reports whether this call did it.
func (r *Reservation) finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return false
	}
	r.done = true
	return true
}

// QuotaService enforces the per-user idea allowance.
type QuotaService interface {
	// Reserve takes one slot with a single conditional increment. It returns
	// *apperrors.QuotaExceededError when a non-premium user is at the limit.
	Reserve(ctx context.Context, userID string) (*Reservation, error)

	// Commit finalizes a reservation once the idea batch is persisted.
	Commit(ctx context.Context, r *Reservation) error

	// Cancel gives the slot back when the batch was never persisted.
	Cancel(ctx context.Context, r *Reservation) error

	// Release gives one slot back after an idea is deleted. The count never
	// drops below zero.
	Release(ctx context.Context, userID string) (*models.QuotaStatus, error)

	// Status returns the caller-facing view of the user's quota.
	Status(ctx context.Context, userID string) (*models.QuotaStatus, error)
}

type quotaService struct {
	repo       repositories.QuotaRepository
	defaultMax int
	logger     *zap.Logger
}

// NewQuotaService creates a QuotaService. defaultMax is the allowance of users
// without a quota record yet.
func NewQuotaService(repo repositories.QuotaRepository, defaultMax int, logger *zap.Logger) QuotaService {
	if defaultMax < 0 {
		defaultMax = models.DefaultMaxIdeas
	}
	return &quotaService{
		repo:       repo,
		defaultMax: defaultMax,
		logger:     logger.Named("quota"),
	}
}

var _ QuotaService = (*quotaService)(nil)

func (s *quotaService) Reserve(ctx context.Context, userID string) (*Reservation, error) {
	rec, ok, err := s.repo.TryIncrement(ctx, userID, s.defaultMax)
	if err != nil {
		s.logger.Error("Failed to reserve quota",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if !ok {
		s.logger.Info("Quota exceeded",
			zap.String("user_id", userID),
			zap.Int("current", rec.IdeaCount),
			zap.Int("max", rec.MaxIdeas))
		return nil, &apperrors.QuotaExceededError{Current: rec.IdeaCount, Max: rec.MaxIdeas}
	}

	s.logger.Debug("Reserved quota",
		zap.String("user_id", userID),
		zap.Int("current", rec.IdeaCount),
		zap.Bool("premium", rec.Premium))

	return &Reservation{UserID: userID, Record: rec}, nil
}

func (s *quotaService) Commit(ctx context.Context, r *Reservation) error {
	if r == nil || !r.finish() {
		return nil
	}
	s.logger.Debug("Committed quota reservation", zap.String("user_id", r.UserID))
	return nil
}

func (s *quotaService) Cancel(ctx context.Context, r *Reservation) error {
	if r == nil || !r.finish() {
		return nil
	}
	ctx, cancel := settleContext(ctx)
	defer cancel()
	if _, err := s.repo.Decrement(ctx, r.UserID); err != nil {
		s.logger.Error("Failed to cancel quota reservation",
			zap.String("user_id", r.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to cancel quota reservation: %w", err)
	}
	s.logger.Info("Cancelled quota reservation", zap.String("user_id", r.UserID))
	return nil
}

func (s *quotaService) Release(ctx context.Context, userID string) (*models.QuotaStatus, error) {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	rec, err := s.repo.Decrement(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to release quota",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to release quota: %w", err)
	}
	return rec.Status(), nil
}

func (s *quotaService) Status(ctx context.Context, userID string) (*models.QuotaStatus, error) {
	rec, err := s.repo.Get(ctx, userID, s.defaultMax)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	return rec.Status(), nil
}
