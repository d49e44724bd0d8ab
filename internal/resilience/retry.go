package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/herbarium-review/internal/config"
)

// Backoff controls retries with exponential delay and jitter.
type Backoff struct {
	// Attempts counts the first try. 1 disables retries.
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is a fraction of the computed delay (0.25 = ±25%).
	Jitter float64
}

// DefaultBackoff suits calls to public biodiversity APIs.
func DefaultBackoff() Backoff {
	return Backoff{
		Attempts:   3,
		Initial:    500 * time.Millisecond,
		Max:        10 * time.Second,
		Multiplier: 2,
		Jitter:     0.25,
	}
}

// BackoffFromConfig overlays configured values on the defaults.
func BackoffFromConfig(c config.RetryConfig) Backoff {
	b := DefaultBackoff()
	if c.MaxAttempts > 0 {
		b.Attempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		b.Initial = time.Duration(c.InitialBackoffMs) * time.Millisecond
	}
	if c.MaxBackoffMs > 0 {
		b.Max = time.Duration(c.MaxBackoffMs) * time.Millisecond
	}
	if c.Multiplier > 0 {
		b.Multiplier = c.Multiplier
	}
	if c.JitterFraction >= 0 {
		b.Jitter = c.JitterFraction
	}
	return b
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt))
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Retry runs fn until it succeeds, returns an error retryable rejects, the
// attempts run out or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, b Backoff, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(b.Attempts, 1)

	var lastErr error
	for attempt := range attempts {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !Retryable(err) || attempt == attempts-1 {
			break
		}

		zap.L().Warn("resilience: retrying call",
			zap.String("upstream", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}
