package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/herbarium-review/internal/config"
)

var errUnavailable = &UpstreamError{Service: "gbif", StatusCode: 503, Err: errors.New("unavailable")}

func fail(_ context.Context) (int, error) { return 0, errUnavailable }
func ok(_ context.Context) (int, error)   { return 1, nil }

func newTestBreaker(threshold int) (*Breaker, *time.Time) {
	b := NewBreaker("gbif", config.CircuitConfig{FailureThreshold: threshold, ResetTimeoutSecs: 30})
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newTestBreaker(3)
	v, err := Call(context.Background(), b, ok)
	if err != nil || v != 1 {
		t.Fatalf("got %d, %v", v, err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)
	for range 3 {
		_, _ = Call(context.Background(), b, fail)
	}
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	called := false
	_, err := Call(context.Background(), b, func(_ context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
	if called {
		t.Error("upstream must not be called while open")
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3)
	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, ok)
	_, _ = Call(context.Background(), b, fail)
	_, _ = Call(context.Background(), b, fail)
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b, _ := newTestBreaker(2)
	notFound := &UpstreamError{Service: "gbif", StatusCode: 404, Err: errors.New("no match")}
	for range 5 {
		_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) { return 0, notFound })
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1)
	_, _ = Call(context.Background(), b, fail)
	if b.State() != BreakerOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	*clock = clock.Add(31 * time.Second)
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	// Failed probe reopens.
	_, _ = Call(context.Background(), b, fail)
	if b.State() != BreakerOpen {
		t.Fatalf("expected reopened, got %s", b.State())
	}

	*clock = clock.Add(31 * time.Second)
	if _, err := Call(context.Background(), b, ok); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if b.State() != BreakerClosed {
		t.Errorf("expected closed after good probe, got %s", b.State())
	}
}

func TestBreakerState_String(t *testing.T) {
	for state, want := range map[BreakerState]string{
		BreakerClosed:    "closed",
		BreakerOpen:      "open",
		BreakerHalfOpen:  "half-open",
		BreakerState(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d: got %q, want %q", state, got, want)
		}
	}
}
