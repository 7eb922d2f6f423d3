package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncGeneration is a no-op.
func (n *NoopRecorder) IncGeneration(outcome string) {}

// ObserveGenerationDuration is a no-op.
func (n *NoopRecorder) ObserveGenerationDuration(duration time.Duration) {}

// ObserveTokensUsed is a no-op.
func (n *NoopRecorder) ObserveTokensUsed(modelID string, tokens int) {}

// ObserveProviderCall is a no-op.
func (n *NoopRecorder) ObserveProviderCall(modelID, kind string, duration time.Duration) {}

// IncProviderRetry is a no-op.
func (n *NoopRecorder) IncProviderRetry() {}

// IncCreditsReserved is a no-op.
func (n *NoopRecorder) IncCreditsReserved() {}

// IncCreditsReleased is a no-op.
func (n *NoopRecorder) IncCreditsReleased() {}

// IncReleaseFailed is a no-op.
func (n *NoopRecorder) IncReleaseFailed() {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}
