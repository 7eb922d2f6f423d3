// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/catalog"
	"github.com/recast/recast/internal/events"
	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/provider"
)

// Generation errors.
var (
	// ErrGenerationFailed wraps the terminal *provider.Error of a failed generation.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrCancelled marks requests abandoned by the caller, either before credits
	// were reserved or during the provider call.
	ErrCancelled = errors.New("generation cancelled")
	// ErrPersistenceFailed is returned when the provider succeeded but the artifact could not be stored.
	ErrPersistenceFailed = errors.New("artifact persistence failed")
)

// CreditsPerGeneration is the price of one successful generation.
const CreditsPerGeneration int64 = 1

const (
	defaultRetryBackoff   = time.Second
	defaultMaxAttempts    = 2
	defaultPersistTimeout = 10 * time.Second
	defaultReleaseTimeout = 5 * time.Second
)

var tracer = otel.Tracer("github.com/recast/recast/internal/service")

// GenerationConfig tunes the orchestrator.
type GenerationConfig struct {
	// RetryBackoff is the fixed wait before the single retry of a transient provider failure.
	RetryBackoff time.Duration
	// MaxAttempts is the total number of provider calls per generation, including the first.
	MaxAttempts int
	// PersistTimeout bounds the artifact write after a successful provider call.
	PersistTimeout time.Duration
	// ReleaseTimeout bounds a credit refund.
	ReleaseTimeout time.Duration
}

// GenerationService runs the reserve, compile, invoke, persist pipeline.
// Exactly one credit is consumed per persisted artifact; every other exit refunds it.
type GenerationService struct {
	ledger    ledger.Ledger
	gateway   provider.Gateway
	artifacts artifact.Store
	events    events.Sink
	metrics   metrics.Recorder
	logger    *slog.Logger

	retryBackoff   time.Duration
	maxAttempts    int
	persistTimeout time.Duration
	releaseTimeout time.Duration
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(
	l ledger.Ledger,
	gateway provider.Gateway,
	artifacts artifact.Store,
	sink events.Sink,
	recorder metrics.Recorder,
	logger *slog.Logger,
	cfg GenerationConfig,
) *GenerationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if sink == nil {
		sink = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaultReleaseTimeout
	}

	return &GenerationService{
		ledger:         l,
		gateway:        gateway,
		artifacts:      artifacts,
		events:         sink,
		metrics:        recorder,
		logger:         logger.With("component", "generation"),
		retryBackoff:   cfg.RetryBackoff,
		maxAttempts:    cfg.MaxAttempts,
		persistTimeout: cfg.PersistTimeout,
		releaseTimeout: cfg.ReleaseTimeout,
	}
}

// DefaultGenerationConfig returns the production defaults.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		RetryBackoff:   defaultRetryBackoff,
		MaxAttempts:    defaultMaxAttempts,
		PersistTimeout: defaultPersistTimeout,
		ReleaseTimeout: defaultReleaseTimeout,
	}
}

// GenerateInput defines input for one generation.
type GenerateInput struct {
	AccountID   string
	ContentItem *model.ContentItem
	FormatID    string
	ToneID      string
	// ModelID selects the catalog model; empty means catalog.DefaultModelID.
	ModelID string
}

// Generate produces and persists one artifact for in.
//
// Unknown format, tone or model ids fail before any credit is reserved.
// Provider failures come back wrapped in ErrGenerationFailed; errors.As
// recovers the *provider.Error.
func (s *GenerationService) Generate(ctx context.Context, in GenerateInput) (*model.Artifact, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "generation.Generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", in.AccountID),
		attribute.String("generation.format", in.FormatID),
		attribute.String("generation.tone", in.ToneID),
	)

	art, outcome, err := s.generate(ctx, in)
	s.metrics.IncGeneration(outcome)
	s.metrics.ObserveGenerationDuration(time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("artifact.id", art.ID))
	return art, nil
}

func (s *GenerationService) generate(ctx context.Context, in GenerateInput) (*model.Artifact, string, error) {
	format, err := catalog.LookupFormat(in.FormatID)
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, err
	}
	tone, err := catalog.LookupTone(in.ToneID)
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, err
	}
	mdl, err := catalog.LookupModel(in.ModelID)
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, err
	}
	if in.ContentItem == nil || (in.ContentItem.AccountID != "" && in.ContentItem.AccountID != in.AccountID) {
		return nil, metrics.OutcomeInvalidRequest, ErrContentNotFound
	}

	res, err := s.ledger.Reserve(ctx, in.AccountID, CreditsPerGeneration)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientCredits):
			return nil, metrics.OutcomeInsufficientCredits, err
		case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrInvalidAmount):
			return nil, metrics.OutcomeInvalidRequest, err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, metrics.OutcomeCancelled, fmt.Errorf("%w: reserve credits: %w", ErrCancelled, err)
		default:
			return nil, metrics.OutcomeLedgerFailed, fmt.Errorf("reserve credits: %w", err)
		}
	}
	s.metrics.IncCreditsReserved()

	committed := false
	defer func() {
		if !committed {
			s.release(ctx, res)
		}
	}()

	instruction, err := prompt.Compile(in.ContentItem.RawText, format.ID, tone.ID)
	if err != nil {
		return nil, metrics.OutcomeInvalidRequest, err
	}

	completion, attempts, err := s.invoke(ctx, provider.Invocation{
		Instruction:   instruction,
		SystemPrompt:  prompt.SystemPrompt,
		ModelID:       mdl.ID,
		ProviderModel: mdl.ProviderModel,
	})
	if err != nil {
		outcome := metrics.OutcomeProviderFailed
		if errors.Is(err, ErrCancelled) {
			outcome = metrics.OutcomeCancelled
		}
		s.logger.Warn("generation failed",
			"account_id", in.AccountID,
			"content_item_id", in.ContentItem.ID,
			"format", format.ID,
			"model", mdl.ID,
			"attempts", attempts,
			"error_kind", provider.KindOf(err).String(),
			"error", err,
		)
		return nil, outcome, err
	}

	// The provider already did the work; a caller that went away must not lose it.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	art, err := s.artifacts.Save(persistCtx, artifact.SaveInput{
		AccountID:     in.AccountID,
		ContentItemID: in.ContentItem.ID,
		FormatID:      format.ID,
		ToneID:        tone.ID,
		OutputText:    completion.OutputText,
		TokensUsed:    completion.TokensUsed,
		ModelID:       mdl.ID,
	})
	if err != nil {
		s.logger.Error("failed to persist artifact",
			"account_id", in.AccountID,
			"content_item_id", in.ContentItem.ID,
			"error", err,
		)
		return nil, metrics.OutcomePersistenceFailed, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	committed = true

	if err := s.ledger.Commit(persistCtx, res); err != nil {
		s.logger.Warn("failed to commit reservation",
			"reservation_id", res.ID,
			"artifact_id", art.ID,
			"error", err,
		)
	}

	s.metrics.ObserveTokensUsed(mdl.ID, completion.TokensUsed)
	s.events.PublishAsync(events.NewGenerationCompleted(art))
	s.logger.Info("generation completed",
		"account_id", in.AccountID,
		"artifact_id", art.ID,
		"content_item_id", in.ContentItem.ID,
		"format", format.ID,
		"tone", tone.ID,
		"model", mdl.ID,
		"tokens", completion.TokensUsed,
		"attempts", attempts,
	)

	return art, metrics.OutcomeSuccess, nil
}

// invoke calls the gateway, retrying once after a fixed backoff when the failure is transient.
func (s *GenerationService) invoke(ctx context.Context, inv provider.Invocation) (*provider.Completion, int, error) {
	var lastErr error
	attempts := 0

	for attempts < s.maxAttempts {
		if attempts > 0 {
			s.metrics.IncProviderRetry()
			timer := time.NewTimer(s.retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempts, generationFailed(&provider.Error{
					Kind:    provider.KindCancelled,
					Message: "cancelled during retry backoff",
					Err:     ctx.Err(),
				})
			case <-timer.C:
			}
		}
		attempts++

		callStart := time.Now()
		completion, err := s.gateway.Invoke(ctx, inv)
		if err == nil && (completion == nil || strings.TrimSpace(completion.OutputText) == "") {
			err = &provider.Error{Kind: provider.KindInvalidResponse, Message: "empty output"}
		}
		if err != nil && ctx.Err() != nil && provider.KindOf(err) != provider.KindCancelled {
			err = &provider.Error{Kind: provider.KindCancelled, Message: "request cancelled", Err: err}
		}

		result := "ok"
		if err != nil {
			result = provider.KindOf(err).String()
		}
		s.metrics.ObserveProviderCall(inv.ModelID, result, time.Since(callStart))

		if err == nil {
			return completion, attempts, nil
		}
		lastErr = err
		if !provider.KindOf(err).Transient() {
			break
		}
	}

	return nil, attempts, generationFailed(lastErr)
}

// release refunds res on a context detached from the caller's cancellation.
func (s *GenerationService) release(ctx context.Context, res *model.Reservation) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
	defer cancel()

	if err := s.ledger.Release(releaseCtx, res); err != nil {
		s.metrics.IncReleaseFailed()
		s.logger.Error("failed to release reservation",
			"reservation_id", res.ID,
			"account_id", res.AccountID,
			"error", err,
		)
		return
	}
	s.metrics.IncCreditsReleased()
}

func generationFailed(err error) error {
	var perr *provider.Error
	if !errors.As(err, &perr) {
		perr = &provider.Error{Kind: provider.KindUnknown, Err: err}
	}
	if perr.Kind == provider.KindCancelled {
		return fmt.Errorf("%w: %w: %w", ErrGenerationFailed, ErrCancelled, perr)
	}
	return fmt.Errorf("%w: %w", ErrGenerationFailed, perr)
}
