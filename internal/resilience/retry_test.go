package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/herbarium-review/internal/config"
)

func fastBackoff() Backoff {
	return Backoff{Attempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastBackoff(), "gbif", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &UpstreamError{Service: "gbif", StatusCode: http.StatusServiceUnavailable, Err: errors.New("busy")}
		}
		return "match", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "match", v)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff(), "gbif", func(_ context.Context) (int, error) {
		calls++
		return 0, &UpstreamError{Service: "gbif", StatusCode: http.StatusTooManyRequests, Err: errors.New("slow down")}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorStops(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff(), "gbif", func(_ context.Context) (int, error) {
		calls++
		return 0, &UpstreamError{Service: "gbif", StatusCode: http.StatusBadRequest, Err: errors.New("bad name")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_BreakerOpenIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastBackoff(), "gbif", func(_ context.Context) (int, error) {
		calls++
		return 0, ErrBreakerOpen
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := Backoff{Attempts: 5, Initial: time.Hour, Max: time.Hour, Multiplier: 1}

	calls := 0
	_, err := Retry(ctx, b, "gbif", func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, &UpstreamError{Service: "gbif", StatusCode: 503, Err: errors.New("busy")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{Attempts: 5, Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, time.Second, b.Delay(10), "capped at max")

	b.Jitter = 0.5
	for range 50 {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestBackoffFromConfig(t *testing.T) {
	b := BackoffFromConfig(config.RetryConfig{MaxAttempts: 5, InitialBackoffMs: 200, MaxBackoffMs: 2000, Multiplier: 3, JitterFraction: 0.1})
	assert.Equal(t, 5, b.Attempts)
	assert.Equal(t, 200*time.Millisecond, b.Initial)
	assert.Equal(t, 2*time.Second, b.Max)
	assert.InDelta(t, 3.0, b.Multiplier, 1e-9)

	d := BackoffFromConfig(config.RetryConfig{JitterFraction: -1})
	assert.Equal(t, DefaultBackoff().Attempts, d.Attempts)
	assert.InDelta(t, DefaultBackoff().Jitter, d.Jitter, 1e-9)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &UpstreamError{StatusCode: 503, Err: errors.New("x")}, true},
		{"429", &UpstreamError{StatusCode: 429, Err: errors.New("x")}, true},
		{"404", &UpstreamError{StatusCode: 404, Err: errors.New("x")}, false},
		{"wrapped 502", fmt.Errorf("lookup: %w", &UpstreamError{StatusCode: 502, Err: errors.New("x")}), true},
		{"transport reset", &UpstreamError{Err: errors.New("read: connection reset by peer")}, true},
		{"plain", errors.New("invalid json"), false},
		{"breaker", ErrBreakerOpen, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestUpstreamError(t *testing.T) {
	e := &UpstreamError{Service: "gbif", StatusCode: 500, Err: errors.New("boom")}
	assert.Equal(t, "gbif: status 500: boom", e.Error())
	assert.True(t, e.Temporary())

	e = &UpstreamError{Service: "gbif", Err: errors.New("dial tcp: i/o timeout")}
	assert.Equal(t, "gbif: dial tcp: i/o timeout", e.Error())
	assert.True(t, e.Temporary())
}
