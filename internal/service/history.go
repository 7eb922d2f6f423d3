package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/catalog"
	"github.com/recast/recast/internal/model"
)

// History errors.
var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrInvalidCursor    = errors.New("invalid pagination cursor")
	ErrInvalidInput     = errors.New("invalid input")
)

// HistoryService exposes an account's past generations.
type HistoryService struct {
	store artifact.Store
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(store artifact.Store) *HistoryService {
	return &HistoryService{store: store}
}

// ListArtifactsInput defines input for listing artifacts.
type ListArtifactsInput struct {
	AccountID string
	Filter    artifact.Filter
	Cursor    string
	Limit     int
}

// ListArtifactsOutput defines output for listing artifacts.
type ListArtifactsOutput struct {
	Artifacts  []*model.Artifact
	NextCursor string
	HasMore    bool
}

// List returns one page of the account's artifacts, newest first.
func (s *HistoryService) List(ctx context.Context, in ListArtifactsInput) (*ListArtifactsOutput, error) {
	if err := validateFilter(in.Filter); err != nil {
		return nil, err
	}

	page, err := s.store.ListPage(ctx, in.AccountID, in.Filter, in.Cursor, in.Limit)
	if err != nil {
		if errors.Is(err, artifact.ErrInvalidCursor) {
			return nil, ErrInvalidCursor
		}
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return &ListArtifactsOutput{
		Artifacts:  page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.NextCursor != "",
	}, nil
}

// All lazily yields every matching artifact, newest first.
func (s *HistoryService) All(ctx context.Context, accountID string, filter artifact.Filter) iter.Seq2[*model.Artifact, error] {
	return s.store.List(ctx, accountID, filter)
}

// Get retrieves an artifact owned by accountID.
func (s *HistoryService) Get(ctx context.Context, accountID, id string) (*model.Artifact, error) {
	a, err := s.store.Get(ctx, accountID, id)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// Delete removes an artifact owned by accountID.
func (s *HistoryService) Delete(ctx context.Context, accountID, id string) error {
	if err := s.store.Delete(ctx, accountID, id); err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Export is a downloadable rendering of one or more artifacts.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

const exportContentType = "text/plain; charset=utf-8"

// Export renders one artifact as a plain-text download.
func (s *HistoryService) Export(ctx context.Context, accountID, id string) (*Export, error) {
	a, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	return &Export{
		Filename:    "repurposed-content-" + a.FormatID + ".txt",
		ContentType: exportContentType,
		Body:        []byte(a.OutputText),
	}, nil
}

// ExportAll renders every matching artifact into a single plain-text document.
func (s *HistoryService) ExportAll(ctx context.Context, accountID string, filter artifact.Filter) (*Export, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	var b strings.Builder
	n := 0
	for a, err := range s.store.List(ctx, accountID, filter) {
		if err != nil {
			return nil, fmt.Errorf("failed to export artifacts: %w", err)
		}
		if n > 0 {
			b.WriteString("\n\n")
		}
		name := a.FormatID
		if f, err := catalog.LookupFormat(a.FormatID); err == nil {
			name = f.DisplayName
		}
		fmt.Fprintf(&b, "=== %s | %s | %s ===\n\n", name, a.ToneID, a.CreatedAt.Format("2006-01-02 15:04 MST"))
		b.WriteString(a.OutputText)
		n++
	}

	filename := "repurposed-content-all.txt"
	if filter.FormatID != "" {
		filename = "repurposed-content-" + filter.FormatID + ".txt"
	}
	return &Export{
		Filename:    filename,
		ContentType: exportContentType,
		Body:        []byte(b.String()),
	}, nil
}

func validateFilter(f artifact.Filter) error {
	if f.FormatID != "" {
		if _, err := catalog.LookupFormat(f.FormatID); err != nil {
			return err
		}
	}
	for _, id := range f.FormatIDs {
		if _, err := catalog.LookupFormat(id); err != nil {
			return err
		}
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return fmt.Errorf("%w: created_after is after created_before", ErrInvalidInput)
	}
	return nil
}
