package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ideaforge/pkg/models"
	"github.com/ekaya-inc/ideaforge/pkg/repositories"
)

var errStoreDown = errors.New("store unavailable")

// failingIdeaRepo wraps an IdeaRepository and fails selected calls.
type failingIdeaRepo struct {
	repositories.IdeaRepository
	createErr error
	deleteErr error
}

func (r *failingIdeaRepo) CreateBatch(ctx context.Context, ideas []*models.Idea) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.IdeaRepository.CreateBatch(ctx, ideas)
}

func (r *failingIdeaRepo) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.IdeaRepository.Delete(ctx, ownerID, id)
}

// ctxIdeaRepo fails writes on a done context, as the pgx repositories do.
type ctxIdeaRepo struct {
	repositories.IdeaRepository
	createErr error
}

func (r *ctxIdeaRepo) CreateBatch(ctx context.Context, ideas []*models.Idea) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.createErr != nil {
		return r.createErr
	}
	return r.IdeaRepository.CreateBatch(ctx, ideas)
}

// ctxQuotaRepo fails every call on a done context, as the pgx repositories do.
type ctxQuotaRepo struct {
	repositories.QuotaRepository
}

func (r *ctxQuotaRepo) TryIncrement(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return r.QuotaRepository.TryIncrement(ctx, userID, defaultMax)
}

func (r *ctxQuotaRepo) Decrement(ctx context.Context, userID string) (*models.QuotaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.QuotaRepository.Decrement(ctx, userID)
}

// failingGenerationRepo always fails Create.
type failingGenerationRepo struct {
	repositories.GenerationRepository
}

func (r *failingGenerationRepo) Create(ctx context.Context, rec *models.GenerationRecord) error {
	return errStoreDown
}

// recordingCache is an in-memory ArtifactCache for tests.
type recordingCache struct {
	mu    sync.Mutex
	items map[uuid.UUID]*models.CodeArtifact
	sets  int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{items: make(map[uuid.UUID]*models.CodeArtifact)}
}

func (c *recordingCache) Get(ctx context.Context, id uuid.UUID) (*models.CodeArtifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.items[id]
	return a, ok
}

func (c *recordingCache) Set(ctx context.Context, a *models.CodeArtifact) {
	if a.Degraded() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.items[a.IdeaID] = a
}

func (c *recordingCache) Invalidate(ctx context.Context, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
}

func observedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// seedIdeas persists one batch for owner and returns it.
func seedIdeas(t *testing.T, repo repositories.IdeaRepository, owner string, names ...string) []*models.Idea {
	t.Helper()
	ideas := make([]*models.Idea, 0, len(names))
	for i, name := range names {
		idea := SynthesizeIdea("pets", i)
		idea.Name = name
		idea.OwnerID = owner
		ideas = append(ideas, idea)
	}
	if err := repo.CreateBatch(context.Background(), ideas); err != nil {
		t.Fatalf("failed to seed ideas: %v", err)
	}
	return ideas
}
