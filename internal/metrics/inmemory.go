package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Generations               map[string]uint64
	GenerationDurationCount   uint64
	GenerationDurationTotalNs int64
	TokensUsed                uint64
	ProviderCalls             map[string]uint64
	ProviderRetries           uint64
	CreditsReserved           uint64
	CreditsReleased           uint64
	ReleaseFailures           uint64
	EventsPublished           uint64
	EventsDropped             uint64
	HTTPRequests              uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu            sync.Mutex
	generations   map[string]uint64
	providerCalls map[string]uint64

	generationDurationCount   uint64
	generationDurationTotalNs int64
	tokensUsed                uint64
	providerRetries           uint64
	creditsReserved           uint64
	creditsReleased           uint64
	releaseFailures           uint64
	eventsPublished           uint64
	eventsDropped             uint64
	httpRequests              uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		generations:   make(map[string]uint64),
		providerCalls: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	generations := make(map[string]uint64, len(m.generations))
	for k, v := range m.generations {
		generations[k] = v
	}
	calls := make(map[string]uint64, len(m.providerCalls))
	for k, v := range m.providerCalls {
		calls[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Generations:               generations,
		GenerationDurationCount:   atomic.LoadUint64(&m.generationDurationCount),
		GenerationDurationTotalNs: atomic.LoadInt64(&m.generationDurationTotalNs),
		TokensUsed:                atomic.LoadUint64(&m.tokensUsed),
		ProviderCalls:             calls,
		ProviderRetries:           atomic.LoadUint64(&m.providerRetries),
		CreditsReserved:           atomic.LoadUint64(&m.creditsReserved),
		CreditsReleased:           atomic.LoadUint64(&m.creditsReleased),
		ReleaseFailures:           atomic.LoadUint64(&m.releaseFailures),
		EventsPublished:           atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:             atomic.LoadUint64(&m.eventsDropped),
		HTTPRequests:              atomic.LoadUint64(&m.httpRequests),
	}
}

// IncGeneration counts a finished generation by outcome.
func (m *InMemoryRecorder) IncGeneration(outcome string) {
	m.mu.Lock()
	m.generations[outcome]++
	m.mu.Unlock()
}

// ObserveGenerationDuration records generation duration.
func (m *InMemoryRecorder) ObserveGenerationDuration(duration time.Duration) {
	atomic.AddUint64(&m.generationDurationCount, 1)
	atomic.AddInt64(&m.generationDurationTotalNs, duration.Nanoseconds())
}

// ObserveTokensUsed adds to the token counter.
func (m *InMemoryRecorder) ObserveTokensUsed(modelID string, tokens int) {
	if tokens > 0 {
		atomic.AddUint64(&m.tokensUsed, uint64(tokens))
	}
}

// ObserveProviderCall counts a provider round trip by result kind.
func (m *InMemoryRecorder) ObserveProviderCall(modelID, kind string, duration time.Duration) {
	m.mu.Lock()
	m.providerCalls[kind]++
	m.mu.Unlock()
}

// IncProviderRetry increments the retry counter.
func (m *InMemoryRecorder) IncProviderRetry() {
	atomic.AddUint64(&m.providerRetries, 1)
}

// IncCreditsReserved increments the reservation counter.
func (m *InMemoryRecorder) IncCreditsReserved() {
	atomic.AddUint64(&m.creditsReserved, 1)
}

// IncCreditsReleased increments the release counter.
func (m *InMemoryRecorder) IncCreditsReleased() {
	atomic.AddUint64(&m.creditsReleased, 1)
}

// IncReleaseFailed increments the failed release counter.
func (m *InMemoryRecorder) IncReleaseFailed() {
	atomic.AddUint64(&m.releaseFailures, 1)
}

// IncEventPublished counts published or dropped events.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}

// ObserveHTTPRequest increments the request counter.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	atomic.AddUint64(&m.httpRequests, 1)
}
