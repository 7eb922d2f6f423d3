package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/recast/recast/internal/content"
	"github.com/recast/recast/internal/model"
)

func TestCreateContentValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   CreateContentInput
		wantErr error
	}{
		{"empty_text", CreateContentInput{AccountID: "a", RawText: " \n\t"}, ErrEmptyContent},
		{"url_source", CreateContentInput{AccountID: "a", SourceType: model.SourceURL, RawText: "x"}, ErrUnsupportedSourceType},
		{"file_source", CreateContentInput{AccountID: "a", SourceType: model.SourceFile, RawText: "x"}, ErrUnsupportedSourceType},
		{"bogus_source", CreateContentInput{AccountID: "a", SourceType: "fax", RawText: "x"}, ErrUnsupportedSourceType},
		{"too_large", CreateContentInput{AccountID: "a", RawText: strings.Repeat("é", MaxContentLength+1)}, ErrContentTooLarge},
		{"title_too_long", CreateContentInput{AccountID: "a", RawText: "x", Title: strings.Repeat("t", maxTitleLength+1)}, ErrTitleTooLong},
		{"too_many_metadata", CreateContentInput{AccountID: "a", RawText: "x", Metadata: manyKeys(maxMetadataKeys + 1)}, ErrInvalidInput},
	}

	svc := NewContentService(content.NewMemory())
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.Create(context.Background(), test.input)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

func manyKeys(n int) map[string]string {
	m := make(map[string]string, n)
	for i := 0; i < n; i++ {
		m[strings.Repeat("k", i+1)] = "v"
	}
	return m
}

func TestCreateContentDefaults(t *testing.T) {
	t.Parallel()
	svc := NewContentService(content.NewMemory())
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }

	item, err := svc.Create(context.Background(), CreateContentInput{
		AccountID: "acct-1",
		RawText:   "  keep my whitespace  ",
		Metadata:  map[string]string{"lang": "en"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if item.ID == "" {
		t.Fatalf("expected generated id")
	}
	if item.SourceType != model.SourceText {
		t.Fatalf("expected text source, got %q", item.SourceType)
	}
	if item.Title != "Content 2024-03-09" {
		t.Fatalf("unexpected default title %q", item.Title)
	}
	if item.RawText != "  keep my whitespace  " {
		t.Fatalf("raw text must be stored unmodified, got %q", item.RawText)
	}
	if item.Metadata["lang"] != "en" {
		t.Fatalf("expected metadata to be kept")
	}
}

func TestGetContentScopedToAccount(t *testing.T) {
	t.Parallel()
	svc := NewContentService(content.NewMemory())
	ctx := context.Background()

	item, err := svc.Create(ctx, CreateContentInput{AccountID: "owner", Title: "Mine", RawText: "body"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := svc.Get(ctx, "owner", item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Mine" {
		t.Fatalf("unexpected item %+v", got)
	}

	if _, err := svc.Get(ctx, "intruder", item.ID); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound for other account, got %v", err)
	}
	if _, err := svc.Get(ctx, "owner", "missing"); !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expected ErrContentNotFound, got %v", err)
	}
}
