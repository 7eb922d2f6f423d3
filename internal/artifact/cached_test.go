package artifact

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/recast/recast/internal/cache"
)

func newTestCachedStore(t *testing.T) (*CachedStore, *Memory, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c, err := cache.New(context.Background(), "redis://"+mr.Addr(), cache.PoolOptions{})
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	mem := NewMemory()
	return NewCachedStore(mem, c, nil), mem, mr
}

func TestCachedStore_ServesFromCacheAfterSave(t *testing.T) {
	s, mem, _ := newTestCachedStore(t)
	ctx := context.Background()

	a := saveN(t, s, "acct-1", "twitter-thread", 1)[0]

	// Remove from the backing store only; the cached copy must still be served.
	if err := mem.Delete(ctx, "acct-1", a.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "acct-1", a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("Get() = %s, want %s", got.ID, a.ID)
	}
}

func TestCachedStore_DeleteEvicts(t *testing.T) {
	s, _, _ := newTestCachedStore(t)
	ctx := context.Background()

	a := saveN(t, s, "acct-1", "twitter-thread", 1)[0]
	if err := s.Delete(ctx, "acct-1", a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "acct-1", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestCachedStore_NegativeCache(t *testing.T) {
	s, _, _ := newTestCachedStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "acct-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	neg, err := s.cache.IsNegativelyCached(ctx, "acct-1", "missing")
	if err != nil || !neg {
		t.Errorf("IsNegativelyCached() = %v, %v; want true", neg, err)
	}
}

func TestCachedStore_DegradesWhenRedisDown(t *testing.T) {
	s, _, mr := newTestCachedStore(t)
	ctx := context.Background()

	mr.Close()

	a := saveN(t, s, "acct-1", "blog-summary", 1)[0]
	got, err := s.Get(ctx, "acct-1", a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("Get() = %s, want %s", got.ID, a.ID)
	}
}
