package outboxworker

import (
	"math"
	"time"
)

const (
	backoffBase = 30 * time.Second
	backoffCap  = 15 * time.Minute

	// tokenExpiredRetryDelay is used instead of the exponential backoff when
	// a send fails specifically because the provider token expired; it's
	// short because the operator is expected to rotate the token quickly.
	tokenExpiredRetryDelay = 60 * time.Second
)

// RetryDelay implements min(30s * 2^(attempts-1), 15min) for a job whose
// Nth attempt (1-indexed) has just failed.
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	multiple := math.Pow(2, float64(attempt-1))
	delay := time.Duration(float64(backoffBase) * multiple)
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}
