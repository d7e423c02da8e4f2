package metrics

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	HTTPRequests           map[string]uint64 // key: "METHOD route status"
	CacheHits              map[string]uint64
	CacheMisses            map[string]uint64
	QuotaConsumed          map[string]uint64
	QuotaRejected          map[string]uint64
	AnalyticsPublished     map[string]uint64
	AnalyticsProcessed     map[string]uint64
	AnalyticsQueueDepth    int64
	PushDeliveries         map[string]uint64
	PushQueueDepth         int64
	RealtimeConnections    int64
	SchedulerRuns          map[string]uint64 // key: "job success|failure"
	SchedulerDurationTotal time.Duration
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]map[string]uint64

	analyticsQueueDepth    int64
	pushQueueDepth         int64
	realtimeConnections    int64
	schedulerDurationTotal int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{counters: make(map[string]map[string]uint64)}
}

func (m *InMemoryRecorder) inc(family, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[family]
	if !ok {
		c = make(map[string]uint64)
		m.counters[family] = c
	}
	c[key]++
}

func (m *InMemoryRecorder) copyFamily(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.counters[family]))
	for k, v := range m.counters[family] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		HTTPRequests:           m.copyFamily("http"),
		CacheHits:              m.copyFamily("cache_hit"),
		CacheMisses:            m.copyFamily("cache_miss"),
		QuotaConsumed:          m.copyFamily("quota_consumed"),
		QuotaRejected:          m.copyFamily("quota_rejected"),
		AnalyticsPublished:     m.copyFamily("analytics_published"),
		AnalyticsProcessed:     m.copyFamily("analytics_processed"),
		AnalyticsQueueDepth:    atomic.LoadInt64(&m.analyticsQueueDepth),
		PushDeliveries:         m.copyFamily("push"),
		PushQueueDepth:         atomic.LoadInt64(&m.pushQueueDepth),
		RealtimeConnections:    atomic.LoadInt64(&m.realtimeConnections),
		SchedulerRuns:          m.copyFamily("scheduler"),
		SchedulerDurationTotal: time.Duration(atomic.LoadInt64(&m.schedulerDurationTotal)),
	}
}

// ObserveHTTPRequest counts a request by method, route pattern and status.
func (m *InMemoryRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.inc("http", method+" "+route+" "+strconv.Itoa(status))
}

// IncCacheHit increments the hit counter for cache.
func (m *InMemoryRecorder) IncCacheHit(cache string) {
	m.inc("cache_hit", cache)
}

// IncCacheMiss increments the miss counter for cache.
func (m *InMemoryRecorder) IncCacheMiss(cache string) {
	m.inc("cache_miss", cache)
}

// IncQuotaConsumed increments the consumed counter for feature.
func (m *InMemoryRecorder) IncQuotaConsumed(feature string) {
	m.inc("quota_consumed", feature)
}

// IncQuotaRejected increments the rejected counter for feature.
func (m *InMemoryRecorder) IncQuotaRejected(feature string) {
	m.inc("quota_rejected", feature)
}

// IncAnalyticsEventPublished increments the publish counter.
func (m *InMemoryRecorder) IncAnalyticsEventPublished(status string) {
	m.inc("analytics_published", status)
}

// IncAnalyticsEventProcessed increments the processed counter.
func (m *InMemoryRecorder) IncAnalyticsEventProcessed(status string) {
	m.inc("analytics_processed", status)
}

// ObserveAnalyticsBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsBatchSize(size int) {}

// ObserveAnalyticsBatchDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsBatchDuration(duration time.Duration) {}

// SetAnalyticsQueueDepth stores the latest pending count.
func (m *InMemoryRecorder) SetAnalyticsQueueDepth(depth int64) {
	atomic.StoreInt64(&m.analyticsQueueDepth, depth)
}

// ObserveAnalyticsIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveAnalyticsIngestLag(lag time.Duration) {}

// IncPushDelivery increments the push outcome counter.
func (m *InMemoryRecorder) IncPushDelivery(status string) {
	m.inc("push", status)
}

// SetPushQueueDepth stores the latest undelivered count.
func (m *InMemoryRecorder) SetPushQueueDepth(depth int64) {
	atomic.StoreInt64(&m.pushQueueDepth, depth)
}

// SetRealtimeConnections stores the current websocket connection count.
func (m *InMemoryRecorder) SetRealtimeConnections(n int) {
	atomic.StoreInt64(&m.realtimeConnections, int64(n))
}

// ObserveSchedulerJob counts a job run and accumulates its duration.
func (m *InMemoryRecorder) ObserveSchedulerJob(job string, success bool, duration time.Duration) {
	m.inc("scheduler", job+" "+outcome(success))
	atomic.AddInt64(&m.schedulerDurationTotal, duration.Nanoseconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
