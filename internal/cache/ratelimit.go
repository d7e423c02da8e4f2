package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitUserPrefix = "ratelimit:user:"

// RateLimitResult is the outcome of one limiter check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket is full again.
	ResetAt    time.Time
	RetryAfter time.Duration
}

// gcraScript implements the generic cell rate algorithm. The key holds the
// theoretical arrival time (TAT) in microseconds; a request is admitted while
// TAT stays within burst*interval of now.
//
// KEYS[1] bucket, ARGV: interval_us, burst, now_us.
// Returns {allowed, retry_after_us, remaining, reset_after_us}.
var gcraScript = redis.NewScript(`
local interval = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local tolerance = interval * burst

local tat = tonumber(redis.call('GET', KEYS[1]) or now)
if tat < now then tat = now end

local new_tat = tat + interval
local allow_at = new_tat - tolerance
if allow_at > now then
	local remaining = math.floor((now - (tat - tolerance)) / interval)
	return {0, allow_at - now, math.max(remaining, 0), tat - now}
end

redis.call('SET', KEYS[1], new_tat, 'PX', math.ceil((new_tat - now) / 1000) + 1)
return {1, 0, math.floor((now - (new_tat - tolerance)) / interval), new_tat - now}
`)

// CheckUserRateLimit admits ratePerMinute requests per user with bursts up to
// burst. On Redis errors the request is allowed and the error returned.
func (c *Cache) CheckUserRateLimit(ctx context.Context, userID string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if ratePerMinute <= 0 || burst <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now}, nil
	}

	interval := time.Minute / time.Duration(ratePerMinute)
	res, err := gcraScript.Run(ctx, c.client,
		[]string{rateLimitUserPrefix + userID},
		interval.Microseconds(), burst, now.UnixMicro(),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now.Add(interval)}, err
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		RetryAfter: time.Duration(res[1]) * time.Microsecond,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Microsecond),
	}, nil
}
