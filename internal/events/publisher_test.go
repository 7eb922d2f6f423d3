package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client, *miniredis.Miniredis, *metrics.InMemoryRecorder) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rec := metrics.NewInMemory()
	return NewPublisher(client, nil, rec), client, mr, rec
}

func testArtifact() *model.Artifact {
	return &model.Artifact{
		ID:            "01HZX3Q9ZJ7V4M2C1K8B6N5D0F",
		AccountID:     "acct-1",
		ContentItemID: "content-1",
		FormatID:      "linkedin-post",
		ToneID:        "professional",
		OutputText:    "not part of the event",
		TokensUsed:    640,
		ModelID:       "claude-3-sonnet",
		CreatedAt:     time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestNewGenerationCompleted(t *testing.T) {
	t.Parallel()

	ev := NewGenerationCompleted(testArtifact())
	if ev.Type != TypeGenerationCompleted {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.CreatedAt != time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("CreatedAt = %d", ev.CreatedAt)
	}
	if ev.TokensUsed != 640 || ev.FormatID != "linkedin-post" {
		t.Errorf("event = %+v", ev)
	}
}

func TestPublisher_Publish(t *testing.T) {
	p, client, _, _ := newTestPublisher(t)
	ctx := context.Background()

	id, err := p.Publish(ctx, NewGenerationCompleted(testArtifact()))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id == "" {
		t.Error("stream id should be returned")
	}

	msgs, err := client.XRange(ctx, StreamKey, "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("stream length = %d, want 1", len(msgs))
	}

	var got GenerationCompleted
	if err := json.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if got.ArtifactID != "01HZX3Q9ZJ7V4M2C1K8B6N5D0F" || got.AccountID != "acct-1" {
		t.Errorf("payload = %+v", got)
	}
	if msgs[0].Values["type"] != TypeGenerationCompleted {
		t.Errorf("type field = %v", msgs[0].Values["type"])
	}
}

func TestPublisher_PublishAsync(t *testing.T) {
	p, client, _, rec := newTestPublisher(t)

	p.PublishAsync(NewGenerationCompleted(testArtifact()))
	p.PublishAsync(NewGenerationCompleted(testArtifact()))
	p.Wait()

	n, err := client.XLen(context.Background(), StreamKey).Result()
	if err != nil {
		t.Fatalf("XLen() error = %v", err)
	}
	if n != 2 {
		t.Errorf("stream length = %d, want 2", n)
	}
	if got := rec.Snapshot().EventsPublished; got != 2 {
		t.Errorf("EventsPublished = %d, want 2", got)
	}
}

func TestPublisher_PublishAsyncDropsWhenRedisDown(t *testing.T) {
	p, _, mr, rec := newTestPublisher(t)
	mr.Close()

	p.PublishAsync(NewGenerationCompleted(testArtifact()))
	p.Wait()

	if got := rec.Snapshot().EventsDropped; got != 1 {
		t.Errorf("EventsDropped = %d, want 1", got)
	}
}
