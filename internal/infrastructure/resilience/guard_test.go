package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errFlaky = errors.New("flaky")

func retryFlaky(err error) Verdict {
	return Verdict{Retry: errors.Is(err, errFlaky), CountFailure: true}
}

func fastPolicy(attempts int) Policy {
	return Policy{
		Attempts: attempts,
		Backoff:  Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2},
		Classify: retryFlaky,
	}
}

func TestCallRetriesUntilSuccess(t *testing.T) {
	g := NewGuard(fastPolicy(3), nil)

	calls := 0
	got, err := Call(context.Background(), g, "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Call() = %q, %v", got, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestCallStopsAtAttemptLimit(t *testing.T) {
	g := NewGuard(fastPolicy(2), nil)

	calls := 0
	_, err := Call(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	if !errors.Is(err, errFlaky) || calls != 2 {
		t.Fatalf("expected 2 calls ending in flaky error, got %d calls, %v", calls, err)
	}
}

func TestCallDoesNotRetryPermanentFailure(t *testing.T) {
	g := NewGuard(fastPolicy(3), nil)
	permanent := errors.New("permanent")

	calls := 0
	_, err := Call(context.Background(), g, "op", func(context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected one call ending in permanent error, got %d calls, %v", calls, err)
	}
}

func TestCallOpensBreakerAfterFailures(t *testing.T) {
	policy := fastPolicy(1)
	policy.Breaker = BreakerPolicy{Enabled: true, MinRequests: 2, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenCalls: 1}
	g := NewGuard(policy, nil)

	for i := 0; i < 2; i++ {
		if _, err := Call(context.Background(), g, "op", func(context.Context) (int, error) {
			return 0, errFlaky
		}); !errors.Is(err, errFlaky) {
			t.Fatalf("call %d: expected flaky error, got %v", i, err)
		}
	}

	_, err := Call(context.Background(), g, "op", func(context.Context) (int, error) {
		t.Fatalf("open breaker must not run the operation")
		return 0, nil
	})
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestBreakersAreKeyedByOperation(t *testing.T) {
	policy := fastPolicy(1)
	policy.Breaker = BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenCalls: 1}
	g := NewGuard(policy, nil)

	_, _ = Call(context.Background(), g, "a", func(context.Context) (int, error) { return 0, errFlaky })

	got, err := Call(context.Background(), g, "b", func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("operation b should be unaffected, got %d, %v", got, err)
	}
}

func TestUncountedFailuresKeepBreakerClosed(t *testing.T) {
	policy := fastPolicy(1)
	policy.Breaker = BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenCalls: 1}
	policy.Classify = func(error) Verdict { return Verdict{} }
	g := NewGuard(policy, nil)

	for i := 0; i < 3; i++ {
		_, err := Call(context.Background(), g, "op", func(context.Context) (int, error) { return 0, errFlaky })
		if IsCircuitOpen(err) {
			t.Fatalf("call %d: breaker opened on uncounted failures", i)
		}
	}
}

func TestStateChangesAreReported(t *testing.T) {
	var states []string
	policy := fastPolicy(1)
	policy.Breaker = BreakerPolicy{Enabled: true, MinRequests: 1, FailureRatio: 0.5, OpenTimeout: time.Minute, HalfOpenCalls: 1}
	policy.OnStateChange = func(operation, state string) {
		states = append(states, operation+":"+state)
	}
	g := NewGuard(policy, nil)

	_, _ = Call(context.Background(), g, "scan", func(context.Context) (int, error) {
		return 0, errors.New("down")
	})

	if len(states) != 1 || states[0] != "scan:open" {
		t.Fatalf("expected single transition to open, got %v", states)
	}
}

func TestCallSkipsCancelledContext(t *testing.T) {
	g := NewGuard(fastPolicy(3), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := Call(ctx, g, "op", func(context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("expected no call and context canceled, got called=%v err=%v", called, err)
	}
}

func TestWithDefaultsFillsUnsetValues(t *testing.T) {
	p := Policy{Backoff: Backoff{Initial: 2 * time.Second}}.withDefaults()

	if p.Attempts != 2 || p.Backoff.Max != 2*time.Second || p.Backoff.Multiplier != 2 {
		t.Fatalf("unexpected policy: %+v", p)
	}
	if p.Breaker.MinRequests != 5 || p.Breaker.HalfOpenCalls != 2 || p.Classify == nil {
		t.Fatalf("unexpected breaker policy: %+v", p.Breaker)
	}
	if v := p.Classify(errors.New("x")); v.Retry || !v.CountFailure {
		t.Fatalf("unexpected default verdict: %+v", v)
	}
}
