package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = (*InMemoryRecorder)(nil)
	_ Recorder = (*NoopRecorder)(nil)
)

func TestInMemoryRecorder_ConcurrentCounters(t *testing.T) {
	t.Parallel()

	rec := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.IncQuotaConsumed("message_sent")
			rec.ObserveHTTPRequest("GET", "/api/v1/profile", 200, time.Millisecond)
		}()
	}
	wg.Wait()
	rec.IncQuotaRejected("interest_sent")
	rec.SetRealtimeConnections(3)
	rec.ObserveSchedulerJob("clear_boosts", true, 2*time.Second)

	snap := rec.Snapshot()
	assert.Equal(t, uint64(50), snap.QuotaConsumed["message_sent"])
	assert.Equal(t, uint64(1), snap.QuotaRejected["interest_sent"])
	assert.Equal(t, uint64(50), snap.HTTPRequests["GET /api/v1/profile 200"])
	assert.Equal(t, int64(3), snap.RealtimeConnections)
	assert.Equal(t, uint64(1), snap.SchedulerRuns["clear_boosts success"])
	assert.Equal(t, 2*time.Second, snap.SchedulerDurationTotal)
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	rec := NewInMemory()
	rec.IncCacheHit("profile")
	snap := rec.Snapshot()
	snap.CacheHits["profile"] = 100

	assert.Equal(t, uint64(1), rec.Snapshot().CacheHits["profile"])
}

func TestPrometheusRecorder_Counters(t *testing.T) {
	t.Parallel()

	rec := NewPrometheus()
	rec.IncQuotaRejected("profile_boost_used")
	rec.IncQuotaRejected("profile_boost_used")
	rec.IncPushDelivery("delivered")
	rec.SetAnalyticsQueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.quotaRejected.WithLabelValues("profile_boost_used")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.pushDeliveries.WithLabelValues("delivered")))
	assert.Equal(t, 7.0, testutil.ToFloat64(rec.analyticsQueueDepth))
}

func TestPrometheusRecorder_Handler(t *testing.T) {
	t.Parallel()

	rec := NewPrometheus()
	rec.ObserveHTTPRequest("POST", "/api/v1/interests", 201, 15*time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := string(body)
	assert.True(t, strings.Contains(out, `aroosi_http_requests_total{method="POST",route="/api/v1/interests",status="201"} 1`))
	assert.Contains(t, out, "aroosi_http_request_duration_seconds_bucket")
	assert.Contains(t, out, "go_goroutines")
}
