package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "recast"

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	generationTotal    *prometheus.CounterVec
	generationDuration prometheus.Histogram
	tokensUsed         *prometheus.CounterVec
	providerCalls      *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec
	providerRetries    prometheus.Counter
	creditsReserved    prometheus.Counter
	creditsReleased    prometheus.Counter
	releaseFailures    prometheus.Counter
	eventsPublished    *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewPrometheus registers the application metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		generationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Total number of generation requests by outcome",
			},
			[]string{"outcome"},
		),
		generationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "End-to-end generation duration in seconds",
				Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "tokens_used_total",
				Help:      "Total tokens reported by the provider",
			},
			[]string{"model"},
		),
		providerCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "call_total",
				Help:      "Total number of provider calls by result",
			},
			[]string{"model", "result"},
		),
		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "call_duration_seconds",
				Help:      "Provider call duration in seconds",
				Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		providerRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "retries_total",
				Help:      "Total number of automatic provider retries",
			},
		),
		creditsReserved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "reserved_total",
				Help:      "Total credit reservations granted",
			},
		),
		creditsReleased: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "released_total",
				Help:      "Total credit reservations refunded",
			},
		),
		releaseFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "credits",
				Name:      "release_failures_total",
				Help:      "Total refunds that failed at the ledger backend",
			},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total generation events published by status",
			},
			[]string{"status"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "route"},
		),
	}
}

// IncGeneration counts a finished generation by outcome.
func (p *PrometheusRecorder) IncGeneration(outcome string) {
	p.generationTotal.WithLabelValues(outcome).Inc()
}

// ObserveGenerationDuration records generation duration.
func (p *PrometheusRecorder) ObserveGenerationDuration(duration time.Duration) {
	p.generationDuration.Observe(duration.Seconds())
}

// ObserveTokensUsed adds to the token counter of a model.
func (p *PrometheusRecorder) ObserveTokensUsed(modelID string, tokens int) {
	if tokens > 0 {
		p.tokensUsed.WithLabelValues(modelID).Add(float64(tokens))
	}
}

// ObserveProviderCall records one provider round trip.
func (p *PrometheusRecorder) ObserveProviderCall(modelID, kind string, duration time.Duration) {
	p.providerCalls.WithLabelValues(modelID, kind).Inc()
	p.providerDuration.WithLabelValues(modelID).Observe(duration.Seconds())
}

// IncProviderRetry increments the retry counter.
func (p *PrometheusRecorder) IncProviderRetry() {
	p.providerRetries.Inc()
}

// IncCreditsReserved increments the reservation counter.
func (p *PrometheusRecorder) IncCreditsReserved() {
	p.creditsReserved.Inc()
}

// IncCreditsReleased increments the release counter.
func (p *PrometheusRecorder) IncCreditsReleased() {
	p.creditsReleased.Inc()
}

// IncReleaseFailed increments the failed release counter.
func (p *PrometheusRecorder) IncReleaseFailed() {
	p.releaseFailures.Inc()
}

// IncEventPublished counts published or dropped events.
func (p *PrometheusRecorder) IncEventPublished(status string) {
	p.eventsPublished.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
