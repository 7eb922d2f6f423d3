package artifact

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/recast/recast/internal/model"
)

func newTestMemory(t *testing.T, start time.Time) *Memory {
	t.Helper()
	m := NewMemory()
	tick := start
	m.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return m
}

func saveN(t *testing.T, s Store, accountID, formatID string, n int) []*model.Artifact {
	t.Helper()
	var out []*model.Artifact
	for i := 0; i < n; i++ {
		a, err := s.Save(context.Background(), SaveInput{
			AccountID:     accountID,
			ContentItemID: "content-1",
			FormatID:      formatID,
			ToneID:        "professional",
			OutputText:    "output " + formatID,
			TokensUsed:    10,
			ModelID:       "gpt-4",
		})
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		out = append(out, a)
	}
	return out
}

func collect(t *testing.T, s Store, accountID string, f Filter) []*model.Artifact {
	t.Helper()
	var out []*model.Artifact
	for a, err := range s.List(context.Background(), accountID, f) {
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		out = append(out, a)
	}
	return out
}

func TestMemory_SaveAssignsIdentity(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	a := saveN(t, m, "acct-1", "twitter-thread", 1)[0]
	if a.ID == "" {
		t.Error("ID should be assigned")
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt should be assigned")
	}

	b := saveN(t, m, "acct-1", "twitter-thread", 1)[0]
	if a.ID == b.ID {
		t.Error("each save must produce a new artifact")
	}
	if m.Count("acct-1") != 2 {
		t.Errorf("Count() = %d, want 2", m.Count("acct-1"))
	}
}

func TestMemory_SaveRejectsIncompleteInput(t *testing.T) {
	t.Parallel()

	_, err := NewMemory().Save(context.Background(), SaveInput{AccountID: "acct-1"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Save() error = %v, want ErrInvalidInput", err)
	}
}

func TestMemory_ListNewestFirstAcrossPages(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m.pageSize = 3
	saved := saveN(t, m, "acct-1", "twitter-thread", 8)

	got := collect(t, m, "acct-1", Filter{})
	if len(got) != 8 {
		t.Fatalf("List() yielded %d, want 8", len(got))
	}
	for i, a := range got {
		want := saved[len(saved)-1-i]
		if a.ID != want.ID {
			t.Errorf("position %d = %s, want %s", i, a.ID, want.ID)
		}
	}
}

func TestMemory_ListIsRestartable(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	saveN(t, m, "acct-1", "blog-summary", 2)

	seq := m.List(context.Background(), "acct-1", Filter{})
	first := 0
	for _, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		first++
	}

	saveN(t, m, "acct-1", "blog-summary", 1)
	second := 0
	for _, err := range seq {
		if err != nil {
			t.Fatal(err)
		}
		second++
	}

	if first != 2 || second != 3 {
		t.Errorf("ranges yielded %d then %d, want 2 then 3", first, second)
	}
}

func TestMemory_ListStopsEarly(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	saveN(t, m, "acct-1", "twitter-thread", 50)

	calls := 0
	fetch := func(ctx context.Context, accountID string, f Filter, cursor string, limit int) (*Page, error) {
		calls++
		return m.ListPage(ctx, accountID, f, cursor, limit)
	}

	n := 0
	for _, err := range Paginate(context.Background(), fetch, "acct-1", Filter{}, 5) {
		if err != nil {
			t.Fatal(err)
		}
		n++
		if n == 7 {
			break
		}
	}
	if calls != 2 {
		t.Errorf("page fetches = %d, want 2", calls)
	}
}

func TestMemory_ListFilters(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestMemory(t, start)
	saveN(t, m, "acct-1", "twitter-thread", 2)
	saveN(t, m, "acct-1", "linkedin-post", 3)
	saveN(t, m, "acct-2", "twitter-thread", 4)

	after := start.Add(4 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 5},
		{"format", Filter{FormatID: "twitter-thread"}, 2},
		{"any of formats", Filter{FormatIDs: []string{"twitter-thread", "linkedin-post"}}, 5},
		{"search case-insensitive", Filter{Search: "LINKEDIN"}, 3},
		{"search miss", Filter{Search: "nothing"}, 0},
		{"created after", Filter{CreatedAfter: &after}, 2},
		{"created before", Filter{CreatedBefore: &after}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := collect(t, m, "acct-1", tt.filter); len(got) != tt.want {
				t.Errorf("List() yielded %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMemory_ListPageCursor(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	saveN(t, m, "acct-1", "twitter-thread", 5)
	ctx := context.Background()

	p1, err := m.ListPage(ctx, "acct-1", Filter{}, "", 2)
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}
	if len(p1.Items) != 2 || p1.NextCursor == "" {
		t.Fatalf("page 1 = %d items, cursor %q", len(p1.Items), p1.NextCursor)
	}

	p2, err := m.ListPage(ctx, "acct-1", Filter{}, p1.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}
	if p2.Items[0].ID == p1.Items[1].ID {
		t.Error("page 2 must start after the cursor")
	}

	p3, err := m.ListPage(ctx, "acct-1", Filter{}, p2.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListPage() error = %v", err)
	}
	if len(p3.Items) != 1 || p3.NextCursor != "" {
		t.Errorf("last page = %d items, cursor %q", len(p3.Items), p3.NextCursor)
	}

	if _, err := m.ListPage(ctx, "acct-1", Filter{}, "%%%not-base64", 2); !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("bad cursor error = %v, want ErrInvalidCursor", err)
	}
}

func TestMemory_GetAndDeleteScopedToAccount(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()
	a := saveN(t, m, "acct-1", "youtube-script", 1)[0]

	if _, err := m.Get(ctx, "acct-2", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(other account) error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "acct-2", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(other account) error = %v, want ErrNotFound", err)
	}

	got, err := m.Get(ctx, "acct-1", a.ID)
	if err != nil || got.ID != a.ID {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	if err := m.Delete(ctx, "acct-1", a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, "acct-1", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want int }{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{7, 7},
		{MaxPageSize + 1, MaxPageSize},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("NormalizeLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCursorRoundTrip(t *testing.T) {
	t.Parallel()

	a := &model.Artifact{ID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", CreatedAt: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)}
	c, err := DecodeCursor(EncodeCursor(a))
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}
	if c.ID != a.ID || !c.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("cursor = %+v", c)
	}

	if c, err := DecodeCursor(""); c != nil || err != nil {
		t.Errorf("DecodeCursor(\"\") = %v, %v; want nil, nil", c, err)
	}
}
