// Package events publishes generation lifecycle events to a Redis stream
// for downstream export and analytics consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
)

const (
	// StreamKey is the Redis stream for generation events.
	StreamKey = "stream:generation_events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond

	// TypeGenerationCompleted is emitted after an artifact is persisted.
	TypeGenerationCompleted = "generation.completed"
)

// GenerationCompleted is the compact event format for the Redis stream.
type GenerationCompleted struct {
	Type          string `json:"type"`
	ArtifactID    string `json:"aid"`
	AccountID     string `json:"acc"`
	ContentItemID string `json:"cid"`
	FormatID      string `json:"fmt"`
	ToneID        string `json:"tone"`
	ModelID       string `json:"model"`
	TokensUsed    int    `json:"tok"`
	CreatedAt     int64  `json:"t"` // Unix milliseconds
}

// NewGenerationCompleted builds the event for a persisted artifact.
func NewGenerationCompleted(a *model.Artifact) GenerationCompleted {
	return GenerationCompleted{
		Type:          TypeGenerationCompleted,
		ArtifactID:    a.ID,
		AccountID:     a.AccountID,
		ContentItemID: a.ContentItemID,
		FormatID:      a.FormatID,
		ToneID:        a.ToneID,
		ModelID:       a.ModelID,
		TokensUsed:    a.TokensUsed,
		CreatedAt:     a.CreatedAt.UnixMilli(),
	}
}

// Sink receives generation events. Implementations must not block the caller.
type Sink interface {
	PublishAsync(event GenerationCompleted)
}

// Discard is a Sink that drops every event.
type Discard struct{}

// PublishAsync implements Sink.
func (Discard) PublishAsync(GenerationCompleted) {}

// Publisher enqueues generation events to a Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	wg      sync.WaitGroup
}

// NewPublisher creates a new generation event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "events.publisher"),
		metrics: recorder,
	}
}

// Publish adds an event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event GenerationCompleted) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"type":    event.Type,
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event GenerationCompleted) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish generation event",
				"artifact_id", event.ArtifactID,
				"error", err,
			)
			p.metrics.IncEventPublished("dropped")
			return
		}

		p.logger.Debug("generation event published",
			"artifact_id", event.ArtifactID,
			"stream_id", streamID,
		)
		p.metrics.IncEventPublished("success")
	}()
}

// Wait blocks until every in-flight PublishAsync has finished.
func (p *Publisher) Wait() {
	p.wg.Wait()
}
