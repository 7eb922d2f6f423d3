package artifact

import (
	"context"
	"iter"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/recast/recast/internal/model"
)

// Memory is an in-process Store.
type Memory struct {
	mu        sync.RWMutex
	byAccount map[string][]*model.Artifact
	now       func() time.Time
	pageSize  int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		byAccount: make(map[string][]*model.Artifact),
		now:       time.Now,
		pageSize:  DefaultPageSize,
	}
}

// Save implements Store.
func (m *Memory) Save(ctx context.Context, in SaveInput) (*model.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := New(in, m.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byAccount[a.AccountID] = append(m.byAccount[a.AccountID], a)
	m.mu.Unlock()

	copied := *a
	return &copied, nil
}

// List implements Store.
func (m *Memory) List(ctx context.Context, accountID string, filter Filter) iter.Seq2[*model.Artifact, error] {
	return Paginate(ctx, m.ListPage, accountID, filter, m.pageSize)
}

// ListPage implements Store.
func (m *Memory) ListPage(ctx context.Context, accountID string, filter Filter, cursor string, limit int) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pos, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	limit = NormalizeLimit(limit)

	m.mu.RLock()
	all := make([]*model.Artifact, len(m.byAccount[accountID]))
	copy(all, m.byAccount[accountID])
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	page := &Page{}
	for _, a := range all {
		if pos != nil && !pos.After(a) {
			continue
		}
		if !matches(a, filter) {
			continue
		}
		if len(page.Items) == limit {
			page.NextCursor = EncodeCursor(page.Items[len(page.Items)-1])
			break
		}
		copied := *a
		page.Items = append(page.Items, &copied)
	}
	return page, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, accountID, id string) (*model.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byAccount[accountID] {
		if a.ID == id {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, accountID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.byAccount[accountID]
	for i, a := range items {
		if a.ID == id {
			m.byAccount[accountID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Count returns the number of artifacts stored for accountID.
func (m *Memory) Count(accountID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAccount[accountID])
}

func matches(a *model.Artifact, f Filter) bool {
	if f.FormatID != "" && a.FormatID != f.FormatID {
		return false
	}
	if len(f.FormatIDs) > 0 && !slices.Contains(f.FormatIDs, a.FormatID) {
		return false
	}
	if f.CreatedAfter != nil && a.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && a.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(a.OutputText), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
