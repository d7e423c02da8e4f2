// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// PrometheusRecorder exposes them on /metrics; InMemoryRecorder backs tests.
type Recorder interface {
	// HTTP metrics
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)

	// Cache metrics
	IncCacheHit(cache string)
	IncCacheMiss(cache string)

	// Quota metrics
	IncQuotaConsumed(feature string)
	IncQuotaRejected(feature string)

	// Analytics pipeline metrics
	IncAnalyticsEventPublished(status string) // status: "success" or "dropped"
	IncAnalyticsEventProcessed(status string) // status: "success", "failed", "skipped"
	ObserveAnalyticsBatchSize(size int)
	ObserveAnalyticsBatchDuration(duration time.Duration)
	SetAnalyticsQueueDepth(depth int64)
	ObserveAnalyticsIngestLag(lag time.Duration)

	// Push delivery metrics
	IncPushDelivery(status string) // status: "delivered", "retry", "exhausted", "in_app"
	SetPushQueueDepth(depth int64)

	// Realtime metrics
	SetRealtimeConnections(n int)

	// Scheduler metrics
	ObserveSchedulerJob(job string, success bool, duration time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
