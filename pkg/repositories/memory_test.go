package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/models"
)

func testIdea(owner, name string) *models.Idea {
	return &models.Idea{
		OwnerID:     owner,
		Name:        name,
		Tagline:     name + " tagline",
		Description: name + " description",
		TechStack:   []string{"Go"},
		Source:      models.IdeaSourceModel,
	}
}

func TestMemoryIdeaRepository_CreateBatchAndGet(t *testing.T) {
	repo := NewMemoryIdeaRepository()
	ctx := context.Background()

	batch := []*models.Idea{testIdea("alice", "A"), testIdea("alice", "B")}
	require.NoError(t, repo.CreateBatch(ctx, batch))

	for _, idea := range batch {
		assert.NotEqual(t, uuid.Nil, idea.ID)
		assert.Equal(t, models.IdeaStatusNew, idea.Status)
	}

	got, err := repo.GetByID(ctx, "alice", batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	// Mutating the returned copy does not touch the store.
	got.TechStack[0] = "Rust"
	again, _ := repo.GetByID(ctx, "alice", batch[0].ID)
	assert.Equal(t, "Go", again.TechStack[0])

	_, err = repo.GetByID(ctx, "bob", batch[0].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryIdeaRepository_CreateBatchIsAllOrNothing(t *testing.T) {
	repo := NewMemoryIdeaRepository()
	ctx := context.Background()

	existing := testIdea("alice", "existing")
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{existing}))

	dup := testIdea("alice", "dup")
	dup.ID = existing.ID
	err := repo.CreateBatch(ctx, []*models.Idea{testIdea("alice", "fresh"), dup})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	all, _ := repo.List(ctx, "alice")
	assert.Len(t, all, 1, "a failed batch must not leave partial rows")
}

func TestMemoryIdeaRepository_GetByIDsFiltersOwner(t *testing.T) {
	repo := NewMemoryIdeaRepository()
	ctx := context.Background()

	mine := testIdea("alice", "mine")
	theirs := testIdea("bob", "theirs")
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{mine}))
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{theirs}))

	got, err := repo.GetByIDs(ctx, "alice", []uuid.UUID{mine.ID, theirs.ID, uuid.New(), mine.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestMemoryIdeaRepository_FlagsListAndDelete(t *testing.T) {
	repo := NewMemoryIdeaRepository()
	ctx := context.Background()

	a, b := testIdea("alice", "A"), testIdea("alice", "B")
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{a, b}))

	liked := true
	updated, err := repo.UpdateFlags(ctx, "alice", b.ID, IdeaFlags{Liked: &liked})
	require.NoError(t, err)
	assert.True(t, updated.IsLiked)
	assert.False(t, updated.IsSelected, "nil flag leaves value unchanged")

	selected := true
	updated, err = repo.UpdateFlags(ctx, "alice", b.ID, IdeaFlags{Selected: &selected})
	require.NoError(t, err)
	assert.True(t, updated.IsLiked)
	assert.True(t, updated.IsSelected)

	_, err = repo.UpdateFlags(ctx, "bob", b.ID, IdeaFlags{Liked: &liked})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	likedIdeas, _ := repo.ListLiked(ctx, "alice")
	require.Len(t, likedIdeas, 1)
	assert.Equal(t, b.ID, likedIdeas[0].ID)

	require.NoError(t, repo.MarkProcessed(ctx, "alice", []uuid.UUID{a.ID}))
	processed, _ := repo.GetByID(ctx, "alice", a.ID)
	assert.Equal(t, models.IdeaStatusProcessed, processed.Status)

	assert.ErrorIs(t, repo.Delete(ctx, "bob", a.ID), apperrors.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "alice", a.ID))
	all, _ := repo.List(ctx, "alice")
	assert.Len(t, all, 1)
}

func TestMemoryIdeaRepository_ListNewestFirst(t *testing.T) {
	repo := NewMemoryIdeaRepository().(*memoryIdeaRepository)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{testIdea("alice", "old")}))
	repo.now = func() time.Time { return base.Add(time.Hour) }
	require.NoError(t, repo.CreateBatch(ctx, []*models.Idea{testIdea("alice", "new")}))

	all, err := repo.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "new", all[0].Name)
}

func TestMemoryQuotaRepository_LazyRowAndLimit(t *testing.T) {
	repo := NewMemoryQuotaRepository()
	ctx := context.Background()

	rec, err := repo.Get(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.IdeaCount)
	assert.Equal(t, 2, rec.MaxIdeas)

	for i := 1; i <= 2; i++ {
		rec, ok, err := repo.TryIncrement(ctx, "alice", 2)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, rec.IdeaCount)
	}

	rec, ok, err := repo.TryIncrement(ctx, "alice", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, rec.IdeaCount)
}

func TestMemoryQuotaRepository_PremiumBypassesLimit(t *testing.T) {
	repo := NewMemoryQuotaRepository(models.QuotaRecord{UserID: "vip", IdeaCount: 6, MaxIdeas: 6, Premium: true})

	rec, ok, err := repo.TryIncrement(context.Background(), "vip", 6)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, rec.IdeaCount)
}

func TestMemoryQuotaRepository_DecrementFloorsAtZero(t *testing.T) {
	repo := NewMemoryQuotaRepository(models.QuotaRecord{UserID: "alice", IdeaCount: 1, MaxIdeas: 6})
	ctx := context.Background()

	rec, err := repo.Decrement(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.IdeaCount)

	rec, err = repo.Decrement(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.IdeaCount)

	rec, err = repo.Decrement(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.IdeaCount)
}

func TestMemoryQuotaRepository_ConcurrentIncrementOneSlot(t *testing.T) {
	repo := NewMemoryQuotaRepository(models.QuotaRecord{UserID: "alice", IdeaCount: 5, MaxIdeas: 6})

	const workers = 50
	var wg sync.WaitGroup
	var successes atomic.Int32
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, err := repo.TryIncrement(context.Background(), "alice", 6); err == nil && ok {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	rec, _ := repo.Get(context.Background(), "alice", 6)
	assert.Equal(t, 6, rec.IdeaCount)
}

func TestMemoryGenerationRepository_ListByUserNewestFirst(t *testing.T) {
	repo := NewMemoryGenerationRepository()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &models.GenerationRecord{ID: uuid.New(), UserID: "alice", ProjectName: "first", GeneratedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.GenerationRecord{ID: uuid.New(), UserID: "bob", ProjectName: "other", GeneratedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.GenerationRecord{ID: uuid.New(), UserID: "alice", ProjectName: "second", GeneratedAt: base.Add(time.Minute)}))

	records, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "second", records[0].ProjectName)
	assert.Equal(t, "first", records[1].ProjectName)
}
