// Package artifact persists generated artifacts and lists them newest first.
package artifact

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recast/recast/internal/model"
)

// Common errors for artifact store operations.
var (
	ErrNotFound      = errors.New("artifact not found")
	ErrInvalidCursor = errors.New("invalid pagination cursor")
	ErrInvalidInput  = errors.New("invalid artifact")
)

// Pagination bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// SaveInput carries the fields of a new artifact. Id and timestamp are assigned on save.
type SaveInput struct {
	AccountID     string
	ContentItemID string
	FormatID      string
	ToneID        string
	OutputText    string
	TokensUsed    int
	ModelID       string
}

// Filter narrows a listing.
type Filter struct {
	FormatID string
	// FormatIDs matches any of the listed formats.
	FormatIDs []string
	// Search is a case-insensitive substring match on the output text.
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Page is one slice of a listing. NextCursor is empty on the last page.
type Page struct {
	Items      []*model.Artifact
	NextCursor string
}

// Store is the artifact persistence contract.
type Store interface {
	// Save appends a new artifact. It never overwrites.
	Save(ctx context.Context, in SaveInput) (*model.Artifact, error)
	// List lazily yields every matching artifact, newest first.
	// Each range over the sequence queries the store afresh.
	List(ctx context.Context, accountID string, filter Filter) iter.Seq2[*model.Artifact, error]
	// ListPage returns one page of matching artifacts, newest first.
	ListPage(ctx context.Context, accountID string, filter Filter, cursor string, limit int) (*Page, error)
	// Get returns an artifact owned by accountID.
	Get(ctx context.Context, accountID, id string) (*model.Artifact, error)
	// Delete removes an artifact owned by accountID.
	Delete(ctx context.Context, accountID, id string) error
}

// New builds the artifact for in, stamped with a fresh ULID and now.
func New(in SaveInput, now time.Time) (*model.Artifact, error) {
	if in.AccountID == "" || in.ContentItemID == "" || in.FormatID == "" {
		return nil, ErrInvalidInput
	}
	return &model.Artifact{
		ID:            ulid.Make().String(),
		AccountID:     in.AccountID,
		ContentItemID: in.ContentItemID,
		FormatID:      in.FormatID,
		ToneID:        in.ToneID,
		OutputText:    in.OutputText,
		TokensUsed:    in.TokensUsed,
		ModelID:       in.ModelID,
		CreatedAt:     now.UTC(),
	}, nil
}

// PageFunc fetches one page of a listing.
type PageFunc func(ctx context.Context, accountID string, filter Filter, cursor string, limit int) (*Page, error)

// Paginate turns a page fetcher into a lazy sequence.
// Pages are fetched only as the consumer advances; stopping early fetches nothing more.
func Paginate(ctx context.Context, fetch PageFunc, accountID string, filter Filter, pageSize int) iter.Seq2[*model.Artifact, error] {
	return func(yield func(*model.Artifact, error) bool) {
		cursor := ""
		for {
			page, err := fetch(ctx, accountID, filter, cursor, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, a := range page.Items {
				if !yield(a, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}

// NormalizeLimit clamps a requested page size into [1, MaxPageSize].
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// Cursor is the decoded position of a listing: the last artifact already returned.
type Cursor struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// After reports whether a sorts strictly after the cursor in newest-first order.
func (c *Cursor) After(a *model.Artifact) bool {
	if a.CreatedAt.Equal(c.CreatedAt) {
		return a.ID < c.ID
	}
	return a.CreatedAt.Before(c.CreatedAt)
}

// EncodeCursor encodes a pagination cursor to base64.
func EncodeCursor(a *model.Artifact) string {
	data, _ := json.Marshal(Cursor{ID: a.ID, CreatedAt: a.CreatedAt})
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes a base64 pagination cursor. An empty string yields nil.
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil || c.ID == "" {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}
