package httpclient

import (
	"context"
	"math/rand"
	"time"
)

// CalculateBackoffWithJitter calculates backoff duration with jitter for retries
func CalculateBackoffWithJitter(baseBackoff time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return baseBackoff
	}

	multiplier := uint(1) << uint(attempt-1)
	backoff := time.Duration(float64(baseBackoff) * float64(multiplier))
	if backoff/2 <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff / 2)))

	return backoff + jitter
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
