//go:build integration

package repository

import (
	"errors"
	"testing"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/model"
)

// ============================================================================
// Artifact Repository Integration Tests
// ============================================================================

func saveTestArtifact(t *testing.T, store *ArtifactRepository, accountID, formatID, output string) *model.Artifact {
	t.Helper()
	art, err := store.Save(t.Context(), artifact.SaveInput{
		AccountID:     accountID,
		ContentItemID: "content-1",
		FormatID:      formatID,
		ToneID:        "professional",
		OutputText:    output,
		TokensUsed:    100,
		ModelID:       "claude-3-sonnet",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return art
}

func TestIntegrationArtifactRepository_SaveGet(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	store := repo.Artifacts()

	saved := saveTestArtifact(t, store, "acct-1", "twitter-thread", "1/ Big news")

	got, err := store.Get(ctx, "acct-1", saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OutputText != saved.OutputText || got.TokensUsed != 100 {
		t.Errorf("artifact mismatch: got %+v", got)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt mismatch: got %v, want %v", got.CreatedAt, saved.CreatedAt)
	}

	if _, err := store.Get(ctx, "acct-2", saved.ID); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("Expected artifact.ErrNotFound for foreign account, got: %v", err)
	}
}

func TestIntegrationArtifactRepository_ListPagination(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	store := repo.Artifacts()
	store.pageSize = 2

	var saved []*model.Artifact
	for i := 0; i < 5; i++ {
		saved = append(saved, saveTestArtifact(t, store, "acct-1", "blog-summary", "summary"))
	}

	var got []*model.Artifact
	for art, err := range store.List(ctx, "acct-1", artifact.Filter{}) {
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		got = append(got, art)
	}

	if len(got) != 5 {
		t.Fatalf("List yielded %d, want 5", len(got))
	}
	for i, art := range got {
		if want := saved[len(saved)-1-i].ID; art.ID != want {
			t.Errorf("position %d: got %s, want %s", i, art.ID, want)
		}
	}
}

func TestIntegrationArtifactRepository_ListFilters(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	store := repo.Artifacts()

	saveTestArtifact(t, store, "acct-1", "twitter-thread", "Thread about GROWTH")
	saveTestArtifact(t, store, "acct-1", "linkedin-post", "Post about hiring")
	saveTestArtifact(t, store, "acct-1", "email-newsletter", "Newsletter on growth")
	saveTestArtifact(t, store, "acct-2", "twitter-thread", "growth elsewhere")

	tests := []struct {
		name   string
		filter artifact.Filter
		want   int
	}{
		{"all", artifact.Filter{}, 3},
		{"format", artifact.Filter{FormatID: "twitter-thread"}, 1},
		{"any format", artifact.Filter{FormatIDs: []string{"twitter-thread", "linkedin-post"}}, 2},
		{"search", artifact.Filter{Search: "growth"}, 2},
		{"search with wildcard chars", artifact.Filter{Search: "%"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := store.ListPage(ctx, "acct-1", tt.filter, "", 50)
			if err != nil {
				t.Fatalf("ListPage failed: %v", err)
			}
			if len(page.Items) != tt.want {
				t.Errorf("ListPage returned %d, want %d", len(page.Items), tt.want)
			}
		})
	}
}

func TestIntegrationArtifactRepository_InvalidCursor(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)

	_, err := repo.Artifacts().ListPage(ctx, "acct-1", artifact.Filter{}, "not-a-cursor!", 10)
	if !errors.Is(err, artifact.ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got: %v", err)
	}
}

func TestIntegrationArtifactRepository_Delete(t *testing.T) {
	ctx, repo := newRepoTestEnv(t)
	store := repo.Artifacts()

	saved := saveTestArtifact(t, store, "acct-1", "youtube-script", "script")

	if err := store.Delete(ctx, "acct-2", saved.ID); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("Expected ErrNotFound deleting foreign artifact, got: %v", err)
	}
	if err := store.Delete(ctx, "acct-1", saved.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "acct-1", saved.ID); !errors.Is(err, artifact.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got: %v", err)
	}
}
