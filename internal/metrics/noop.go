package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// ObserveHTTPRequest is a no-op.
func (n *NoopRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {}

// IncCacheHit is a no-op.
func (n *NoopRecorder) IncCacheHit(cache string) {}

// IncCacheMiss is a no-op.
func (n *NoopRecorder) IncCacheMiss(cache string) {}

// IncQuotaConsumed is a no-op.
func (n *NoopRecorder) IncQuotaConsumed(feature string) {}

// IncQuotaRejected is a no-op.
func (n *NoopRecorder) IncQuotaRejected(feature string) {}

// IncAnalyticsEventPublished is a no-op.
func (n *NoopRecorder) IncAnalyticsEventPublished(status string) {}

// IncAnalyticsEventProcessed is a no-op.
func (n *NoopRecorder) IncAnalyticsEventProcessed(status string) {}

// ObserveAnalyticsBatchSize is a no-op.
func (n *NoopRecorder) ObserveAnalyticsBatchSize(size int) {}

// ObserveAnalyticsBatchDuration is a no-op.
func (n *NoopRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

// SetAnalyticsQueueDepth is a no-op.
func (n *NoopRecorder) SetAnalyticsQueueDepth(depth int64) {}

// ObserveAnalyticsIngestLag is a no-op.
func (n *NoopRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {}

// IncPushDelivery is a no-op.
func (n *NoopRecorder) IncPushDelivery(status string) {}

// SetPushQueueDepth is a no-op.
func (n *NoopRecorder) SetPushQueueDepth(depth int64) {}

// SetRealtimeConnections is a no-op.
func (n *NoopRecorder) SetRealtimeConnections(count int) {}

// ObserveSchedulerJob is a no-op.
func (n *NoopRecorder) ObserveSchedulerJob(job string, success bool, duration time.Duration) {}
