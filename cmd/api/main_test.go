package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/config"
	"github.com/recast/recast/internal/ledger"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"no_credentials", "redis://localhost:6379/0", "redis://localhost:6379/0"},
		{"user_and_password", "postgres://recast:s3cret@db:5432/recast", "postgres://recast@db:5432/recast"},
		{"password_only", "redis://:s3cret@cache:6379", "redis://redacted@cache:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redactURL(tt.raw); got != tt.want {
				t.Errorf("redactURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	dsn := "postgres://recast:s3cret@db:5432/recast"
	err := errors.New("dial " + dsn + " failed: password=hunter2 rejected")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "s3cret") || strings.Contains(got, "hunter2") {
		t.Fatalf("secret leaked: %q", got)
	}
	if sanitizeError(nil, dsn) != "" {
		t.Fatal("nil error should sanitize to empty string")
	}
}

func TestSelectMemoryBackends(t *testing.T) {
	cfg := &config.Config{StorageBackend: config.BackendMemory, LedgerBackend: config.BackendMemory}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, ok := selectLedger(cfg, nil, nil).(*ledger.Memory); !ok {
		t.Error("expected in-memory ledger")
	}

	contents, artifacts := selectStores(cfg, nil, nil, logger)
	if contents == nil {
		t.Error("expected a content store")
	}
	if _, ok := artifacts.(*artifact.Memory); !ok {
		t.Errorf("expected uncached in-memory artifact store, got %T", artifacts)
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("debug") != slog.LevelDebug || parseLogLevel("bogus") != slog.LevelInfo {
		t.Fatal("unexpected log level mapping")
	}
}
