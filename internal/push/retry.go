package push

import (
	"math/rand/v2"
	"time"
)

// Retry delays for push delivery.
// Attempt 1: 1 min, Attempt 2: 5 min, Attempt 3: 30 min,
// Attempt 4: 2 hours, Attempt 5: 12 hours
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

// JitterFactor is the ±percentage of jitter applied to delays.
const JitterFactor = 0.2

// NextRetryDelay returns the backoff for a 0-indexed attempt count with ±20% jitter.
func NextRetryDelay(attemptCount int) time.Duration {
	attemptCount = min(max(attemptCount, 0), len(retryDelays)-1)
	base := retryDelays[attemptCount]

	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// NextRetryAt returns when the next attempt is due.
func NextRetryAt(now time.Time, attemptCount int) time.Time {
	return now.Add(NextRetryDelay(attemptCount))
}

// IsExhausted returns true if max attempts have been reached.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}

// RetryDelays returns a copy of the configured delays.
func RetryDelays() []time.Duration {
	return append([]time.Duration{}, retryDelays...)
}

// EstimatedMaxDeliveryWindow is the longest span a notification can stay undelivered.
func EstimatedMaxDeliveryWindow() time.Duration {
	var total time.Duration
	for _, d := range retryDelays {
		total += d
	}
	return time.Duration(float64(total) * (1 + JitterFactor))
}
