package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/recast/recast/internal/artifact"
	"github.com/recast/recast/internal/catalog"
	"github.com/recast/recast/internal/events"
	"github.com/recast/recast/internal/ledger"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/model"
	"github.com/recast/recast/internal/provider"
)

type fakeGateway struct {
	mu     sync.Mutex
	script []func(ctx context.Context) (*provider.Completion, error)
	calls  atomic.Int32
	last   provider.Invocation
}

func (g *fakeGateway) Invoke(ctx context.Context, inv provider.Invocation) (*provider.Completion, error) {
	n := int(g.calls.Add(1)) - 1
	g.mu.Lock()
	g.last = inv
	var step func(ctx context.Context) (*provider.Completion, error)
	if len(g.script) > 0 {
		step = g.script[min(n, len(g.script)-1)]
	}
	g.mu.Unlock()

	if step == nil {
		return ok("generated output")(ctx)
	}
	return step(ctx)
}

func (g *fakeGateway) lastInvocation() provider.Invocation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func ok(text string) func(context.Context) (*provider.Completion, error) {
	return func(context.Context) (*provider.Completion, error) {
		return &provider.Completion{OutputText: text, TokensUsed: 42}, nil
	}
}

func fail(kind provider.Kind) func(context.Context) (*provider.Completion, error) {
	return func(context.Context) (*provider.Completion, error) {
		return nil, &provider.Error{Kind: kind, Message: kind.String()}
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.GenerationCompleted
}

func (s *recordingSink) PublishAsync(e events.GenerationCompleted) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type failingStore struct {
	artifact.Store
}

func (failingStore) Save(context.Context, artifact.SaveInput) (*model.Artifact, error) {
	return nil, errors.New("disk full")
}

type generationTestEnv struct {
	svc      *GenerationService
	ledger   *ledger.Memory
	store    *artifact.Memory
	gateway  *fakeGateway
	sink     *recordingSink
	recorder *metrics.InMemoryRecorder
	item     *model.ContentItem
}

func newGenerationTestEnv(t *testing.T, plan model.Plan, opts ...func(*generationTestEnv, *GenerationConfig)) *generationTestEnv {
	t.Helper()

	env := &generationTestEnv{
		ledger:   ledger.NewMemory(),
		store:    artifact.NewMemory(),
		gateway:  &fakeGateway{},
		sink:     &recordingSink{},
		recorder: metrics.NewInMemory(),
		item: &model.ContentItem{
			ID:         "content-1",
			AccountID:  "acct-1",
			Title:      "Launch notes",
			SourceType: model.SourceText,
			RawText:    "We shipped a new search engine for recipes.",
		},
	}
	if _, err := env.ledger.ResetPeriod(context.Background(), "acct-1", plan); err != nil {
		t.Fatalf("reset period: %v", err)
	}

	cfg := GenerationConfig{RetryBackoff: time.Millisecond}
	for _, opt := range opts {
		opt(env, &cfg)
	}

	var store artifact.Store = env.store
	env.svc = NewGenerationService(env.ledger, env.gateway, store, env.sink, env.recorder,
		slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	return env
}

func (e *generationTestEnv) input() GenerateInput {
	return GenerateInput{
		AccountID:   "acct-1",
		ContentItem: e.item,
		FormatID:    "twitter-thread",
		ToneID:      "casual",
	}
}

func (e *generationTestEnv) remaining(t *testing.T) int64 {
	t.Helper()
	acc, err := e.ledger.Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return acc.CreditsRemaining
}

func TestGenerateSuccess(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)

	art, err := env.svc.Generate(context.Background(), env.input())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if art.OutputText != "generated output" || art.TokensUsed != 42 {
		t.Fatalf("unexpected artifact: %+v", art)
	}
	if art.ModelID != catalog.DefaultModelID {
		t.Fatalf("expected default model, got %q", art.ModelID)
	}
	if art.ContentItemID != "content-1" || art.FormatID != "twitter-thread" || art.ToneID != "casual" {
		t.Fatalf("unexpected artifact references: %+v", art)
	}
	if got := env.remaining(t); got != 4 {
		t.Fatalf("expected 4 credits remaining, got %d", got)
	}
	if env.ledger.Outstanding() != 0 {
		t.Fatalf("expected reservation to be committed")
	}
	if env.store.Count("acct-1") != 1 {
		t.Fatalf("expected 1 stored artifact")
	}
	if env.sink.count() != 1 {
		t.Fatalf("expected 1 event, got %d", env.sink.count())
	}

	inv := env.gateway.lastInvocation()
	if inv.ProviderModel != "anthropic/claude-3-sonnet" {
		t.Fatalf("unexpected provider model %q", inv.ProviderModel)
	}
	if inv.SystemPrompt == "" || inv.Instruction == "" {
		t.Fatalf("expected compiled prompt, got %+v", inv)
	}

	snap := env.recorder.Snapshot()
	if snap.Generations[metrics.OutcomeSuccess] != 1 {
		t.Fatalf("expected success outcome, got %v", snap.Generations)
	}
	if snap.CreditsReserved != 1 || snap.CreditsReleased != 0 {
		t.Fatalf("unexpected credit metrics: %+v", snap)
	}
}

func TestGenerateRejectsBeforeReserving(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*GenerateInput)
		wantErr error
	}{
		{"unknown_format", func(in *GenerateInput) { in.FormatID = "fax" }, catalog.ErrUnknownFormat},
		{"unknown_tone", func(in *GenerateInput) { in.ToneID = "sarcastic" }, catalog.ErrUnknownTone},
		{"unknown_model", func(in *GenerateInput) { in.ModelID = "gpt-99" }, catalog.ErrUnknownModel},
		{"missing_content", func(in *GenerateInput) { in.ContentItem = nil }, ErrContentNotFound},
		{"foreign_content", func(in *GenerateInput) {
			in.ContentItem = &model.ContentItem{ID: "c", AccountID: "someone-else", RawText: "x"}
		}, ErrContentNotFound},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			env := newGenerationTestEnv(t, model.PlanFree)
			in := env.input()
			test.mutate(&in)

			_, err := env.svc.Generate(context.Background(), in)
			if !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
			if env.gateway.calls.Load() != 0 {
				t.Fatalf("provider must not be called")
			}
			if snap := env.recorder.Snapshot(); snap.CreditsReserved != 0 {
				t.Fatalf("no credit should be reserved")
			}
			if got := env.remaining(t); got != 5 {
				t.Fatalf("expected balance untouched, got %d", got)
			}
		})
	}
}

func TestGenerateEmptySourceRefunds(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)
	env.item.RawText = "   "

	_, err := env.svc.Generate(context.Background(), env.input())
	if err == nil {
		t.Fatalf("expected error for empty source")
	}
	if env.gateway.calls.Load() != 0 {
		t.Fatalf("provider must not be called")
	}
	if got := env.remaining(t); got != 5 {
		t.Fatalf("expected refund, got %d remaining", got)
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)

	for i := 0; i < 5; i++ {
		if _, err := env.svc.Generate(context.Background(), env.input()); err != nil {
			t.Fatalf("generate %d: %v", i, err)
		}
	}

	_, err := env.svc.Generate(context.Background(), env.input())
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if env.gateway.calls.Load() != 5 {
		t.Fatalf("expected 5 provider calls, got %d", env.gateway.calls.Load())
	}
	if got := env.remaining(t); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
	if snap := env.recorder.Snapshot(); snap.Generations[metrics.OutcomeInsufficientCredits] != 1 {
		t.Fatalf("expected insufficient outcome, got %v", snap.Generations)
	}
}

func TestGenerateUnknownAccount(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)
	in := env.input()
	in.AccountID = "ghost"
	in.ContentItem = &model.ContentItem{ID: "c", RawText: "hello"}

	_, err := env.svc.Generate(context.Background(), in)
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestGenerateCancelledBeforeReserve(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.svc.Generate(ctx, env.input())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if env.gateway.calls.Load() != 0 {
		t.Fatalf("expected no provider calls, got %d", env.gateway.calls.Load())
	}
	if got := env.remaining(t); got != 5 {
		t.Fatalf("expected 5 remaining, got %d", got)
	}
	if snap := env.recorder.Snapshot(); snap.Generations[metrics.OutcomeCancelled] != 1 {
		t.Fatalf("expected cancelled outcome, got %v", snap.Generations)
	}
}

func TestGenerateRetryPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		script    []func(context.Context) (*provider.Completion, error)
		wantCalls int32
		wantKind  provider.Kind
		wantOK    bool
	}{
		{"unauthorized_not_retried", []func(context.Context) (*provider.Completion, error){fail(provider.KindUnauthorized)}, 1, provider.KindUnauthorized, false},
		{"invalid_response_not_retried", []func(context.Context) (*provider.Completion, error){fail(provider.KindInvalidResponse)}, 1, provider.KindInvalidResponse, false},
		{"unknown_not_retried", []func(context.Context) (*provider.Completion, error){fail(provider.KindUnknown)}, 1, provider.KindUnknown, false},
		{"timeout_retried_once", []func(context.Context) (*provider.Completion, error){fail(provider.KindTimeout)}, 2, provider.KindTimeout, false},
		{"rate_limited_retried_once", []func(context.Context) (*provider.Completion, error){fail(provider.KindRateLimited)}, 2, provider.KindRateLimited, false},
		{"timeout_then_success", []func(context.Context) (*provider.Completion, error){fail(provider.KindTimeout), ok("second try")}, 2, 0, true},
		{"empty_output_invalid", []func(context.Context) (*provider.Completion, error){ok("  ")}, 1, provider.KindInvalidResponse, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			env := newGenerationTestEnv(t, model.PlanFree)
			env.gateway.script = test.script

			art, err := env.svc.Generate(context.Background(), env.input())

			if got := env.gateway.calls.Load(); got != test.wantCalls {
				t.Fatalf("expected %d calls, got %d", test.wantCalls, got)
			}
			if test.wantOK {
				if err != nil {
					t.Fatalf("generate: %v", err)
				}
				if art.OutputText != "second try" {
					t.Fatalf("unexpected output %q", art.OutputText)
				}
				if got := env.remaining(t); got != 4 {
					t.Fatalf("expected 4 remaining, got %d", got)
				}
				return
			}

			if !errors.Is(err, ErrGenerationFailed) {
				t.Fatalf("expected ErrGenerationFailed, got %v", err)
			}
			var perr *provider.Error
			if !errors.As(err, &perr) || perr.Kind != test.wantKind {
				t.Fatalf("expected kind %v, got %v", test.wantKind, err)
			}
			if got := env.remaining(t); got != 5 {
				t.Fatalf("expected refund, got %d remaining", got)
			}
			if env.store.Count("acct-1") != 0 {
				t.Fatalf("no artifact should be stored")
			}
			if env.sink.count() != 0 {
				t.Fatalf("no event should be published")
			}
		})
	}
}

func TestGenerateCancelledDuringBackoff(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree, func(_ *generationTestEnv, cfg *GenerationConfig) {
		cfg.RetryBackoff = time.Hour
	})

	ctx, cancel := context.WithCancel(context.Background())
	env.gateway.script = []func(context.Context) (*provider.Completion, error){
		func(context.Context) (*provider.Completion, error) {
			cancel()
			return nil, &provider.Error{Kind: provider.KindRateLimited}
		},
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.svc.Generate(ctx, env.input())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, ErrGenerationFailed) {
			t.Fatalf("expected cancelled generation failure, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not observe cancellation")
	}

	if got := env.gateway.calls.Load(); got != 1 {
		t.Fatalf("expected 1 call, got %d", got)
	}
	if got := env.remaining(t); got != 5 {
		t.Fatalf("expected refund, got %d remaining", got)
	}
	if snap := env.recorder.Snapshot(); snap.Generations[metrics.OutcomeCancelled] != 1 {
		t.Fatalf("expected cancelled outcome, got %v", snap.Generations)
	}
}

func TestGenerateCancelledDuringCall(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)

	ctx, cancel := context.WithCancel(context.Background())
	env.gateway.script = []func(context.Context) (*provider.Completion, error){
		func(ctx context.Context) (*provider.Completion, error) {
			cancel()
			<-ctx.Done()
			return nil, &provider.Error{Kind: provider.KindUnknown, Err: ctx.Err()}
		},
	}

	_, err := env.svc.Generate(ctx, env.input())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if provider.KindOf(err) != provider.KindCancelled {
		t.Fatalf("expected cancelled kind, got %v", provider.KindOf(err))
	}
	if got := env.remaining(t); got != 5 {
		t.Fatalf("expected refund, got %d remaining", got)
	}
}

func TestGenerateCancelAfterProviderSuccessStillCharges(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)

	ctx, cancel := context.WithCancel(context.Background())
	env.gateway.script = []func(context.Context) (*provider.Completion, error){
		func(context.Context) (*provider.Completion, error) {
			cancel()
			return &provider.Completion{OutputText: "done anyway", TokensUsed: 7}, nil
		},
	}

	art, err := env.svc.Generate(ctx, env.input())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if art.OutputText != "done anyway" {
		t.Fatalf("unexpected artifact %+v", art)
	}
	if got := env.remaining(t); got != 4 {
		t.Fatalf("expected charge for persisted artifact, got %d remaining", got)
	}
}

func TestGeneratePersistenceFailureRefunds(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)
	env.svc.artifacts = failingStore{Store: env.store}

	_, err := env.svc.Generate(context.Background(), env.input())
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if got := env.remaining(t); got != 5 {
		t.Fatalf("expected refund, got %d remaining", got)
	}
	if env.sink.count() != 0 {
		t.Fatalf("no event should be published")
	}
	if snap := env.recorder.Snapshot(); snap.Generations[metrics.OutcomePersistenceFailed] != 1 {
		t.Fatalf("expected persistence outcome, got %v", snap.Generations)
	}
}

func TestGenerateConcurrentSingleCredit(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanFree)
	ctx := context.Background()

	// Drain to one credit.
	for i := 0; i < 4; i++ {
		if _, err := env.svc.Generate(ctx, env.input()); err != nil {
			t.Fatalf("generate: %v", err)
		}
	}

	release := make(chan struct{})
	env.gateway.script = []func(context.Context) (*provider.Completion, error){
		func(context.Context) (*provider.Completion, error) {
			<-release
			return &provider.Completion{OutputText: "slow", TokensUsed: 1}, nil
		},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Generate(ctx, env.input())
		}(i)
	}

	// Whichever call lost the reservation race returns without touching the provider.
	deadline := time.After(5 * time.Second)
	for env.recorder.Snapshot().Generations[metrics.OutcomeInsufficientCredits] == 0 {
		select {
		case <-deadline:
			close(release)
			t.Fatal("expected one call to be rejected")
		case <-time.After(time.Millisecond):
		}
	}
	close(release)
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrInsufficientCredits):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected 1 success and 1 rejection, got %d/%d", succeeded, rejected)
	}
	if got := env.remaining(t); got != 0 {
		t.Fatalf("expected 0 remaining, got %d", got)
	}
}

func TestGenerateConservesCredits(t *testing.T) {
	t.Parallel()
	env := newGenerationTestEnv(t, model.PlanPro)
	ctx := context.Background()

	var n atomic.Int32
	env.gateway.script = []func(context.Context) (*provider.Completion, error){
		func(context.Context) (*provider.Completion, error) {
			if n.Add(1)%3 == 0 {
				return nil, &provider.Error{Kind: provider.KindUnauthorized}
			}
			return &provider.Completion{OutputText: "ok", TokensUsed: 1}, nil
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = env.svc.Generate(ctx, env.input())
		}()
	}
	wg.Wait()

	stored := int64(env.store.Count("acct-1"))
	if got := env.remaining(t); got != 500-stored {
		t.Fatalf("expected %d remaining for %d artifacts, got %d", 500-stored, stored, got)
	}
	if stored != 40 {
		t.Fatalf("expected 40 artifacts, got %d", stored)
	}
	if env.ledger.Outstanding() != 0 {
		t.Fatalf("expected no outstanding reservations, got %d", env.ledger.Outstanding())
	}
}
