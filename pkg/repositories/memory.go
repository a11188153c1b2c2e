package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ideaforge/pkg/apperrors"
	"github.com/ekaya-inc/ideaforge/pkg/models"
)

// The in-memory repositories back local runs (database.type=memory) and
// service tests. They copy records in and out so callers never share state
// with the store.

type memoryIdeaRepository struct {
	mu    sync.RWMutex
	ideas map[uuid.UUID]*models.Idea
	now   func() time.Time
}

// NewMemoryIdeaRepository creates an IdeaRepository held in process memory.
func NewMemoryIdeaRepository() IdeaRepository {
	return &memoryIdeaRepository{
		ideas: make(map[uuid.UUID]*models.Idea),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

var _ IdeaRepository = (*memoryIdeaRepository)(nil)

func copyIdea(idea *models.Idea) *models.Idea {
	c := *idea
	c.TechStack = append([]string{}, idea.TechStack...)
	c.KeyFeatures = append([]string{}, idea.KeyFeatures...)
	c.RevenueModel = append([]string{}, idea.RevenueModel...)
	c.ProblemSolved = append([]string{}, idea.ProblemSolved...)
	c.Solution = append([]string{}, idea.Solution...)
	c.CompetitiveAdvantage = append([]string{}, idea.CompetitiveAdvantage...)
	return &c
}

func (r *memoryIdeaRepository) CreateBatch(ctx context.Context, ideas []*models.Idea) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate the whole batch before touching the map.
	seen := make(map[uuid.UUID]struct{}, len(ideas))
	for _, idea := range ideas {
		if idea.ID == uuid.Nil {
			continue
		}
		if _, dup := seen[idea.ID]; dup {
			return apperrors.ErrConflict
		}
		if _, exists := r.ideas[idea.ID]; exists {
			return apperrors.ErrConflict
		}
		seen[idea.ID] = struct{}{}
	}

	now := r.now()
	for i, idea := range ideas {
		if idea.ID == uuid.Nil {
			idea.ID = uuid.New()
		}
		if idea.Status == "" {
			idea.Status = models.IdeaStatusNew
		}
		// Preserve batch order when listing by creation time.
		idea.CreatedAt = now.Add(-time.Duration(i) * time.Nanosecond)
		idea.UpdatedAt = now
		r.ideas[idea.ID] = copyIdea(idea)
	}
	return nil
}

func (r *memoryIdeaRepository) GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*models.Idea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idea, ok := r.ideas[id]
	if !ok || idea.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	return copyIdea(idea), nil
}

func (r *memoryIdeaRepository) GetByIDs(ctx context.Context, ownerID string, ids []uuid.UUID) ([]*models.Idea, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Idea, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if idea, ok := r.ideas[id]; ok && idea.OwnerID == ownerID {
			result = append(result, copyIdea(idea))
		}
	}
	return result, nil
}

func (r *memoryIdeaRepository) UpdateFlags(ctx context.Context, ownerID string, id uuid.UUID, flags IdeaFlags) (*models.Idea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idea, ok := r.ideas[id]
	if !ok || idea.OwnerID != ownerID {
		return nil, apperrors.ErrNotFound
	}
	if flags.Liked != nil {
		idea.IsLiked = *flags.Liked
	}
	if flags.Selected != nil {
		idea.IsSelected = *flags.Selected
	}
	idea.UpdatedAt = r.now()
	return copyIdea(idea), nil
}

func (r *memoryIdeaRepository) List(ctx context.Context, ownerID string) ([]*models.Idea, error) {
	return r.list(ownerID, false), nil
}

func (r *memoryIdeaRepository) ListLiked(ctx context.Context, ownerID string) ([]*models.Idea, error) {
	return r.list(ownerID, true), nil
}

func (r *memoryIdeaRepository) list(ownerID string, likedOnly bool) []*models.Idea {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Idea, 0)
	for _, idea := range r.ideas {
		if idea.OwnerID != ownerID || (likedOnly && !idea.IsLiked) {
			continue
		}
		result = append(result, copyIdea(idea))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].Name < result[j].Name
	})
	return result
}

func (r *memoryIdeaRepository) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idea, ok := r.ideas[id]
	if !ok || idea.OwnerID != ownerID {
		return apperrors.ErrNotFound
	}
	delete(r.ideas, id)
	return nil
}

func (r *memoryIdeaRepository) MarkProcessed(ctx context.Context, ownerID string, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, id := range ids {
		if idea, ok := r.ideas[id]; ok && idea.OwnerID == ownerID {
			idea.Status = models.IdeaStatusProcessed
			idea.UpdatedAt = now
		}
	}
	return nil
}

type memoryQuotaRepository struct {
	mu     sync.Mutex
	quotas map[string]*models.QuotaRecord
}

// NewMemoryQuotaRepository creates a QuotaRepository held in process memory,
// optionally seeded with existing records.
func NewMemoryQuotaRepository(seed ...models.QuotaRecord) QuotaRepository {
	r := &memoryQuotaRepository{quotas: make(map[string]*models.QuotaRecord)}
	now := time.Now().UTC()
	for _, rec := range seed {
		rec.CreatedAt, rec.UpdatedAt = now, now
		r.quotas[rec.UserID] = &rec
	}
	return r
}

var _ QuotaRepository = (*memoryQuotaRepository)(nil)

// ensure must be called with mu held.
func (r *memoryQuotaRepository) ensure(userID string, defaultMax int) *models.QuotaRecord {
	q, ok := r.quotas[userID]
	if !ok {
		now := time.Now().UTC()
		q = &models.QuotaRecord{UserID: userID, MaxIdeas: defaultMax, CreatedAt: now, UpdatedAt: now}
		r.quotas[userID] = q
	}
	return q
}

func (r *memoryQuotaRepository) TryIncrement(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.ensure(userID, defaultMax)
	if !q.HasCapacity() {
		c := *q
		return &c, false, nil
	}
	q.IdeaCount++
	q.UpdatedAt = time.Now().UTC()
	c := *q
	return &c, true, nil
}

func (r *memoryQuotaRepository) Decrement(ctx context.Context, userID string) (*models.QuotaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.quotas[userID]
	if !ok {
		return &models.QuotaRecord{UserID: userID}, nil
	}
	if q.IdeaCount > 0 {
		q.IdeaCount--
	}
	q.UpdatedAt = time.Now().UTC()
	c := *q
	return &c, nil
}

func (r *memoryQuotaRepository) Get(ctx context.Context, userID string, defaultMax int) (*models.QuotaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *r.ensure(userID, defaultMax)
	return &c, nil
}

type memoryGenerationRepository struct {
	mu      sync.RWMutex
	records []*models.GenerationRecord
}

// NewMemoryGenerationRepository creates a GenerationRepository held in process memory.
func NewMemoryGenerationRepository() GenerationRepository {
	return &memoryGenerationRepository{}
}

var _ GenerationRepository = (*memoryGenerationRepository)(nil)

func (r *memoryGenerationRepository) Create(ctx context.Context, rec *models.GenerationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *rec
	c.IdeaIDs = append([]uuid.UUID{}, rec.IdeaIDs...)
	c.TechStack = append([]string{}, rec.TechStack...)
	r.records = append(r.records, &c)
	return nil
}

func (r *memoryGenerationRepository) ListByUser(ctx context.Context, userID string) ([]*models.GenerationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.GenerationRecord, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			c := *r.records[i]
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].GeneratedAt.After(result[j].GeneratedAt)
	})
	return result, nil
}
