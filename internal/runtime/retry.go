package runtime

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// retryConfig and runWithRetry implement exponential backoff with jitter
// around a failing operation, used here for image pulls: any error is
// retried, up to MaxAttempts, before it is treated as fatal for the job
// combination.
type retryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

var defaultPullRetry = retryConfig{
	MaxAttempts:       3,
	InitialDelay:      1 * time.Second,
	MaxDelay:          4 * time.Second,
	BackoffMultiplier: 2.0,
}

func runWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(addJitter(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = nextDelay(delay, cfg.BackoffMultiplier, cfg.MaxDelay)
	}
	return lastErr
}

func nextDelay(current time.Duration, multiplier float64, maxDelay time.Duration) time.Duration {
	result := float64(current) * multiplier
	if math.IsInf(result, 0) || math.IsNaN(result) || result > float64(math.MaxInt64) {
		return maxDelay
	}
	next := time.Duration(result)
	if next < 0 {
		return maxDelay
	}
	return min(next, maxDelay)
}

func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	jitterRange := float64(d) * 0.2
	jitter := time.Duration(jitterRange * (2*rand.Float64() - 1)) //nolint:gosec // jitter, not security sensitive
	result := d + jitter
	if result < 0 {
		return 0
	}
	return result
}
