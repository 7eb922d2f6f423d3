// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Generation outcomes reported to IncGeneration.
const (
	OutcomeSuccess             = "success"
	OutcomeInvalidRequest      = "invalid_request"
	OutcomeInsufficientCredits = "insufficient_credits"
	OutcomeProviderFailed      = "provider_failed"
	OutcomeCancelled           = "cancelled"
	OutcomePersistenceFailed   = "persistence_failed"
	OutcomeLedgerFailed        = "ledger_failed"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Generation metrics
	IncGeneration(outcome string)
	ObserveGenerationDuration(duration time.Duration)
	ObserveTokensUsed(modelID string, tokens int)

	// Provider metrics; kind is "ok" or a failure kind.
	ObserveProviderCall(modelID, kind string, duration time.Duration)
	IncProviderRetry()

	// Ledger metrics
	IncCreditsReserved()
	IncCreditsReleased()
	IncReleaseFailed()

	// Event pipeline metrics
	IncEventPublished(status string) // status: "success" or "dropped"

	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
