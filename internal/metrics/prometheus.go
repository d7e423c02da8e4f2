package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aroosi"

// PrometheusRecorder implements Recorder on a dedicated Prometheus registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	quotaConsumed *prometheus.CounterVec
	quotaRejected *prometheus.CounterVec

	analyticsPublished     *prometheus.CounterVec
	analyticsProcessed     *prometheus.CounterVec
	analyticsBatchSize     prometheus.Histogram
	analyticsBatchDuration prometheus.Histogram
	analyticsQueueDepth    prometheus.Gauge
	analyticsIngestLag     prometheus.Histogram

	pushDeliveries *prometheus.CounterVec
	pushQueueDepth prometheus.Gauge

	realtimeConnections prometheus.Gauge

	schedulerRuns     *prometheus.CounterVec
	schedulerDuration *prometheus.HistogramVec
}

// NewPrometheus builds a recorder with process and Go runtime collectors registered.
func NewPrometheus() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "route"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups by cache name and result.",
			},
			[]string{"cache", "result"},
		),
		quotaConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "consumed_total",
				Help:      "Usage units consumed per feature.",
			},
			[]string{"feature"},
		),
		quotaRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "quota",
				Name:      "rejected_total",
				Help:      "Requests rejected because the plan quota was reached.",
			},
			[]string{"feature"},
		),
		analyticsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analytics",
				Name:      "events_published_total",
				Help:      "Profile view events published to the stream.",
			},
			[]string{"status"},
		),
		analyticsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "analytics",
				Name:      "events_processed_total",
				Help:      "Profile view events processed by the worker.",
			},
			[]string{"status"},
		),
		analyticsBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "batch_size",
			Help:      "Number of events per processed batch.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		analyticsBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "batch_duration_seconds",
			Help:      "Time spent persisting a batch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		analyticsQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "pending_events",
			Help:      "Entries pending acknowledgement in the consumer group.",
		}),
		analyticsIngestLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "ingest_lag_seconds",
			Help:      "Delay between a profile view and its persistence.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		pushDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "push",
				Name:      "deliveries_total",
				Help:      "Notification delivery outcomes.",
			},
			[]string{"status"},
		),
		pushQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "queue_depth",
			Help:      "Notifications awaiting push delivery.",
		}),
		realtimeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections on this instance.",
		}),
		schedulerRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_runs_total",
				Help:      "Total number of maintenance job runs.",
			},
			[]string{"job", "success"},
		),
		schedulerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scheduler",
				Name:      "job_run_duration_seconds",
				Help:      "Duration of maintenance job runs.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"job"},
		),
	}

	r.registry.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.cacheLookups,
		r.quotaConsumed,
		r.quotaRejected,
		r.analyticsPublished,
		r.analyticsProcessed,
		r.analyticsBatchSize,
		r.analyticsBatchDuration,
		r.analyticsQueueDepth,
		r.analyticsIngestLag,
		r.pushDeliveries,
		r.pushQueueDepth,
		r.realtimeConnections,
		r.schedulerRuns,
		r.schedulerDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *PrometheusRecorder) IncCacheHit(cache string) {
	r.cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (r *PrometheusRecorder) IncCacheMiss(cache string) {
	r.cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (r *PrometheusRecorder) IncQuotaConsumed(feature string) {
	r.quotaConsumed.WithLabelValues(feature).Inc()
}

func (r *PrometheusRecorder) IncQuotaRejected(feature string) {
	r.quotaRejected.WithLabelValues(feature).Inc()
}

func (r *PrometheusRecorder) IncAnalyticsEventPublished(status string) {
	r.analyticsPublished.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) IncAnalyticsEventProcessed(status string) {
	r.analyticsProcessed.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) ObserveAnalyticsBatchSize(size int) {
	r.analyticsBatchSize.Observe(float64(size))
}

func (r *PrometheusRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {
	r.analyticsBatchDuration.Observe(duration.Seconds())
}

func (r *PrometheusRecorder) SetAnalyticsQueueDepth(depth int64) {
	r.analyticsQueueDepth.Set(float64(depth))
}

func (r *PrometheusRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {
	r.analyticsIngestLag.Observe(lag.Seconds())
}

func (r *PrometheusRecorder) IncPushDelivery(status string) {
	r.pushDeliveries.WithLabelValues(status).Inc()
}

func (r *PrometheusRecorder) SetPushQueueDepth(depth int64) {
	r.pushQueueDepth.Set(float64(depth))
}

func (r *PrometheusRecorder) SetRealtimeConnections(n int) {
	r.realtimeConnections.Set(float64(n))
}

func (r *PrometheusRecorder) ObserveSchedulerJob(job string, success bool, duration time.Duration) {
	r.schedulerRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
	r.schedulerDuration.WithLabelValues(job).Observe(duration.Seconds())
}
