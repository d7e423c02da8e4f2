//go:build integration

package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aroosi/aroosi-api/internal/auth"
	"github.com/aroosi/aroosi-api/internal/cache"
	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/testutil"
)

func newRateLimitCache(t *testing.T) *cache.Cache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	opt, err := redis.ParseURL(testutil.RequireEnv(t, "TEST_REDIS_URL"))
	require.NoError(t, err)

	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, testutil.FlushRedis(ctx, client))
	return cache.NewFromClient(client)
}

// TestIntegrationRateLimitConcurrency verifies the Redis bucket never admits more than burst.
func TestIntegrationRateLimitConcurrency(t *testing.T) {
	c := newRateLimitCache(t)
	ctx := context.Background()

	const (
		rpm   = 10
		burst = 5
	)

	var allowed, rejected int64
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 3 {
				result, err := c.CheckUserRateLimit(ctx, "user-concurrent", rpm, burst)
				if err != nil {
					t.Errorf("CheckUserRateLimit error: %v", err)
					return
				}
				if result.Allowed {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, int64(burst+1), "refill during the test may admit one more")
	assert.Equal(t, int64(60), allowed+rejected)
}

func TestIntegrationRateLimitUserMiddleware(t *testing.T) {
	c := newRateLimitCache(t)

	handler := RateLimitUser(RateLimitConfig{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Limiter:       c,
		Enabled:       true,
		RatePerMinute: 60,
		Burst:         2,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/profiles/me", nil)
		req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{UserID: "u1"}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
