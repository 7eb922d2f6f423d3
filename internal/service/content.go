package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/recast/recast/internal/content"
	"github.com/recast/recast/internal/model"
)

// Content errors.
var (
	ErrContentNotFound       = errors.New("content item not found")
	ErrUnsupportedSourceType = errors.New("unsupported source type")
	ErrEmptyContent          = errors.New("content text is required")
	ErrContentTooLarge       = errors.New("content text too large")
	ErrTitleTooLong          = errors.New("title too long")
)

const (
	// MaxContentLength is the maximum source text length in characters.
	MaxContentLength = 100000
	maxTitleLength   = 200
	maxMetadataKeys  = 20
)

// ContentService handles content item business logic.
type ContentService struct {
	store content.Store
	now   func() time.Time
}

// NewContentService creates a new ContentService.
func NewContentService(store content.Store) *ContentService {
	return &ContentService{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateContentInput defines input for creating a content item.
type CreateContentInput struct {
	AccountID  string
	Title      string
	SourceType model.SourceType
	RawText    string
	Metadata   map[string]string
}

// Create validates and stores a new content item.
// Only text sources are accepted; url and file ingestion happen upstream.
func (s *ContentService) Create(ctx context.Context, in CreateContentInput) (*model.ContentItem, error) {
	sourceType := in.SourceType
	if sourceType == "" {
		sourceType = model.SourceText
	}
	if sourceType != model.SourceText {
		return nil, ErrUnsupportedSourceType
	}

	if strings.TrimSpace(in.RawText) == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(in.RawText) > MaxContentLength {
		return nil, ErrContentTooLarge
	}

	now := s.now()
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Content " + now.Format("2006-01-02")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}

	var metadata map[string]string
	if len(in.Metadata) > 0 {
		if len(in.Metadata) > maxMetadataKeys {
			return nil, fmt.Errorf("%w: at most %d metadata keys", ErrInvalidInput, maxMetadataKeys)
		}
		metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			metadata[k] = v
		}
	}

	item := &model.ContentItem{
		ID:         ulid.Make().String(),
		AccountID:  in.AccountID,
		Title:      title,
		SourceType: sourceType,
		RawText:    in.RawText,
		Metadata:   metadata,
		CreatedAt:  now.Truncate(time.Microsecond),
	}

	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create content item: %w", err)
	}
	return item, nil
}

// Get retrieves a content item owned by accountID.
func (s *ContentService) Get(ctx context.Context, accountID, id string) (*model.ContentItem, error) {
	item, err := s.store.Get(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}
