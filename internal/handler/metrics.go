package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recast/recast/internal/metrics"
)

// MetricsHandler exposes service metrics.
type MetricsHandler struct {
	prom        http.Handler
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
// With a gatherer it serves the Prometheus exposition format; otherwise it
// falls back to a JSON snapshot of the in-memory recorder, if any.
func NewMetricsHandler(gatherer prometheus.Gatherer, snapshotter metrics.Snapshotter) *MetricsHandler {
	h := &MetricsHandler{snapshotter: snapshotter}
	if gatherer != nil {
		h.prom = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return h
}

// Metrics handles GET /metrics.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	switch {
	case h.prom != nil:
		h.prom.ServeHTTP(w, r)
	case h.snapshotter != nil:
		writeJSON(w, http.StatusOK, h.snapshotter.Snapshot())
	default:
		writeError(w, http.StatusServiceUnavailable, "METRICS_DISABLED", "metrics are not enabled")
	}
}
