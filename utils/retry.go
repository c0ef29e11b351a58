package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
}

// Do executes fn with exponential back-off retry logic.
func (r *RetryConfig) Do(operationName string, fn func() error) error {
	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < r.MaxAttempts {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, r.MaxAttempts, lastErr, delay)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, r.MaxAttempts, lastErr)
}

// Backoff computes jittered exponential delays:
// min(Base^attempt + uniform(JitterMin, JitterMax), Cap), in seconds.
type Backoff struct {
	Base      float64
	JitterMin time.Duration
	JitterMax time.Duration
	Cap       time.Duration
}

// DefaultBackoff is min(2^attempt + U(1,3), 20) seconds.
func DefaultBackoff() Backoff {
	return Backoff{Base: 2, JitterMin: time.Second, JitterMax: 3 * time.Second, Cap: 20 * time.Second}
}

// Delay returns the wait before retrying after the given zero-based attempt.
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	exp := time.Duration(math.Pow(b.Base, float64(attempt)) * float64(time.Second))
	d := exp + Uniform(rng, b.JitterMin, b.JitterMax)
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}

// Uniform draws a duration in [lo, hi). A nil rng or an empty range yields lo.
func Uniform(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if rng == nil || hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
