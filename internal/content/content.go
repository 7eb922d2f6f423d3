// Package content stores the source items that generations are made from.
package content

import (
	"context"
	"errors"
	"sync"

	"github.com/recast/recast/internal/model"
)

// ErrNotFound is returned for missing items and items owned by another account.
var ErrNotFound = errors.New("content item not found")

// Store persists content items.
type Store interface {
	Create(ctx context.Context, item *model.ContentItem) error
	Get(ctx context.Context, accountID, id string) (*model.ContentItem, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*model.ContentItem
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*model.ContentItem)}
}

// Create implements Store.
func (m *Memory) Create(_ context.Context, item *model.ContentItem) error {
	copied := *item
	m.mu.Lock()
	m.items[item.ID] = &copied
	m.mu.Unlock()
	return nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, accountID, id string) (*model.ContentItem, error) {
	m.mu.RLock()
	item, ok := m.items[id]
	m.mu.RUnlock()
	if !ok || item.AccountID != accountID {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}
