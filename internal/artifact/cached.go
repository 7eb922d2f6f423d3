package artifact

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"github.com/recast/recast/internal/cache"
	"github.com/recast/recast/internal/model"
)

// ReadCache is the subset of the Redis cache used by CachedStore.
type ReadCache interface {
	GetArtifact(ctx context.Context, accountID, id string) (*model.Artifact, error)
	SetArtifact(ctx context.Context, a *model.Artifact) error
	DeleteArtifact(ctx context.Context, accountID, id string) error
	IsNegativelyCached(ctx context.Context, accountID, id string) (bool, error)
	SetNegativeCache(ctx context.Context, accountID, id string) error
}

// CachedStore puts a cache-aside read path in front of a Store.
// Cache failures degrade to the backing store and never fail a call.
type CachedStore struct {
	Store
	cache  ReadCache
	logger *slog.Logger
}

// NewCachedStore wraps store with c.
func NewCachedStore(store Store, c ReadCache, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{Store: store, cache: c, logger: logger.With("component", "artifact_cache")}
}

// Save implements Store and warms the cache with the new artifact.
func (s *CachedStore) Save(ctx context.Context, in SaveInput) (*model.Artifact, error) {
	a, err := s.Store.Save(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetArtifact(ctx, a); err != nil {
		s.logger.Warn("failed to cache artifact", "artifact_id", a.ID, "error", err)
	}
	return a, nil
}

// List implements Store. Listings always go to the backing store.
func (s *CachedStore) List(ctx context.Context, accountID string, filter Filter) iter.Seq2[*model.Artifact, error] {
	return s.Store.List(ctx, accountID, filter)
}

// Get implements Store.
func (s *CachedStore) Get(ctx context.Context, accountID, id string) (*model.Artifact, error) {
	cached, err := s.cache.GetArtifact(ctx, accountID, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("artifact cache read failed", "artifact_id", id, "error", err)
	}

	if neg, err := s.cache.IsNegativelyCached(ctx, accountID, id); err == nil && neg {
		return nil, ErrNotFound
	}

	a, err := s.Store.Get(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if cerr := s.cache.SetNegativeCache(ctx, accountID, id); cerr != nil {
				s.logger.Warn("failed to set negative cache", "artifact_id", id, "error", cerr)
			}
		}
		return nil, err
	}

	if err := s.cache.SetArtifact(ctx, a); err != nil {
		s.logger.Warn("failed to cache artifact", "artifact_id", id, "error", err)
	}
	return a, nil
}

// Delete implements Store.
func (s *CachedStore) Delete(ctx context.Context, accountID, id string) error {
	if err := s.Store.Delete(ctx, accountID, id); err != nil {
		return err
	}
	if err := s.cache.DeleteArtifact(ctx, accountID, id); err != nil {
		s.logger.Warn("failed to evict artifact", "artifact_id", id, "error", err)
	}
	return nil
}
