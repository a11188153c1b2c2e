package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ideaforge/pkg/models"
)

const artifactKeyPrefix = "ideaforge:artifact:"

// ArtifactCache stores clean code artifacts per idea so repeated generation
// requests skip the model. Implementations must be safe for concurrent use;
// cache failures are never surfaced to callers.
type ArtifactCache interface {
	Get(ctx context.Context, ideaID uuid.UUID) (*models.CodeArtifact, bool)
	Set(ctx context.Context, artifact *models.CodeArtifact)
	Invalidate(ctx context.Context, ideaID uuid.UUID)
}

type redisArtifactCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisArtifactCache creates an ArtifactCache backed by Redis. A nil client
// yields a cache that stores nothing.
func NewRedisArtifactCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ArtifactCache {
	if client == nil {
		return NoopArtifactCache{}
	}
	return &redisArtifactCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("artifact-cache"),
	}
}

var _ ArtifactCache = (*redisArtifactCache)(nil)

func artifactKey(ideaID uuid.UUID) string {
	return artifactKeyPrefix + ideaID.String()
}

func (c *redisArtifactCache) Get(ctx context.Context, ideaID uuid.UUID) (*models.CodeArtifact, bool) {
	data, err := c.client.Get(ctx, artifactKey(ideaID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Artifact cache read failed",
				zap.String("idea_id", ideaID.String()),
				zap.Error(err))
		}
		return nil, false
	}

	var artifact models.CodeArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		c.logger.Warn("Discarding undecodable cached artifact",
			zap.String("idea_id", ideaID.String()),
			zap.Error(err))
		return nil, false
	}
	return &artifact, true
}

func (c *redisArtifactCache) Set(ctx context.Context, artifact *models.CodeArtifact) {
	// Degraded artifacts are regenerated on the next request.
	if artifact == nil || artifact.Degraded() {
		return
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		c.logger.Warn("Failed to encode artifact for cache",
			zap.String("idea_id", artifact.IdeaID.String()),
			zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, artifactKey(artifact.IdeaID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Artifact cache write failed",
			zap.String("idea_id", artifact.IdeaID.String()),
			zap.Error(err))
	}
}

func (c *redisArtifactCache) Invalidate(ctx context.Context, ideaID uuid.UUID) {
	if err := c.client.Del(ctx, artifactKey(ideaID)).Err(); err != nil {
		c.logger.Warn("Artifact cache delete failed",
			zap.String("idea_id", ideaID.String()),
			zap.Error(err))
	}
}

// NoopArtifactCache never stores anything.
type NoopArtifactCache struct{}

var _ ArtifactCache = NoopArtifactCache{}

func (NoopArtifactCache) Get(context.Context, uuid.UUID) (*models.CodeArtifact, bool) { return nil, false }
func (NoopArtifactCache) Set(context.Context, *models.CodeArtifact)                 {}
func (NoopArtifactCache) Invalidate(context.Context, uuid.UUID)                      {}
