package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/model"
)

// Cache key prefixes and TTLs.
const (
	artifactKeyPrefix = "artifact:"
	negCacheKeySuffix = ":neg"

	// DefaultArtifactTTL is the TTL for cached artifacts.
	DefaultArtifactTTL = 24 * time.Hour

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// Artifacts are immutable, so a cached copy never goes stale; only deletion invalidates it.
func artifactKey(accountID, id string) string {
	return artifactKeyPrefix + accountID + ":" + id
}

// GetArtifact retrieves a cached artifact.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetArtifact(ctx context.Context, accountID, id string) (*model.Artifact, error) {
	data, err := c.client.Get(ctx, artifactKey(accountID, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var a model.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode cached artifact: %w", err)
	}
	return &a, nil
}

// SetArtifact stores an artifact in cache and clears any negative entry.
func (c *Cache) SetArtifact(ctx context.Context, a *model.Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	key := artifactKey(a.AccountID, a.ID)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, DefaultArtifactTTL)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache artifact: %w", err)
	}
	return nil
}

// DeleteArtifact removes an artifact and its negative entry from cache.
func (c *Cache) DeleteArtifact(ctx context.Context, accountID, id string) error {
	key := artifactKey(accountID, id)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete artifact from cache: %w", err)
	}
	return nil
}

// IsNegativelyCached checks if an artifact id was recently looked up and not found.
func (c *Cache) IsNegativelyCached(ctx context.Context, accountID, id string) (bool, error) {
	exists, err := c.client.Exists(ctx, artifactKey(accountID, id)+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetNegativeCache marks an artifact id as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, accountID, id string) error {
	err := c.client.SetEx(ctx, artifactKey(accountID, id)+negCacheKeySuffix, "", NegativeCacheTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}
