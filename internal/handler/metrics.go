package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/aroosi/aroosi-api/internal/metrics"
)

// exposer is implemented by recorders that serve their own exposition.
type exposer interface {
	Handler() http.Handler
}

// MetricsHandler exposes the recorder on /metrics.
type MetricsHandler struct {
	recorder metrics.Recorder
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(recorder metrics.Recorder) *MetricsHandler {
	return &MetricsHandler{recorder: recorder}
}

// Metrics serves the Prometheus registry, or a text dump of in-memory counters
// when running with the test recorder.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if e, ok := h.recorder.(exposer); ok {
		e.Handler().ServeHTTP(w, r)
		return
	}

	snapshotter, ok := h.recorder.(metrics.Snapshotter)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	snap := snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeFamily(w, "aroosi_http_requests_total", "request", snap.HTTPRequests)
	writeFamily(w, "aroosi_quota_consumed_total", "feature", snap.QuotaConsumed)
	writeFamily(w, "aroosi_quota_rejected_total", "feature", snap.QuotaRejected)
	writeFamily(w, "aroosi_analytics_events_published_total", "status", snap.AnalyticsPublished)
	writeFamily(w, "aroosi_analytics_events_processed_total", "status", snap.AnalyticsProcessed)
	writeFamily(w, "aroosi_push_deliveries_total", "status", snap.PushDeliveries)
	writeFamily(w, "aroosi_scheduler_runs_total", "run", snap.SchedulerRuns)
	writeMetric(w, "aroosi_analytics_queue_depth %d\n", snap.AnalyticsQueueDepth)
	writeMetric(w, "aroosi_push_queue_depth %d\n", snap.PushQueueDepth)
	writeMetric(w, "aroosi_realtime_connections %d\n", snap.RealtimeConnections)
}

func writeFamily(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
