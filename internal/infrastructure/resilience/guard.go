package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Guard retries operations and trips a breaker per operation name.
type Guard struct {
	policy Policy
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewGuard(policy Policy, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		policy:   policy.withDefaults(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Call runs fn under g. The breaker sees one outcome per Call, after retries.
func Call[T any](ctx context.Context, g *Guard, operation string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	attempt := func() error {
		return g.retry(ctx, operation, func(callCtx context.Context) error {
			v, err := fn(callCtx)
			if err == nil {
				out = v
			}
			return err
		})
	}
	if !g.policy.Breaker.Enabled {
		return out, attempt()
	}
	_, err := g.breaker(operation).Execute(func() (any, error) {
		return nil, attempt()
	})
	return out, err
}

func (g *Guard) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	wait := g.policy.Backoff.Initial
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if n >= g.policy.Attempts || !g.policy.Classify(err).Retry {
			return err
		}
		g.logger.Warn("resilience.retry",
			"operation", operation,
			"attempt", n,
			"max_attempts", g.policy.Attempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		wait = g.policy.Backoff.next(wait)
	}
}

func (g *Guard) breaker(operation string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[operation]; ok {
		return cb
	}
	bp := g.policy.Breaker
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        operation,
		MaxRequests: bp.HalfOpenCalls,
		Timeout:     bp.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= bp.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= bp.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !g.policy.Classify(err).CountFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("resilience.breaker.state_change", "operation", name, "from", from.String(), "to", to.String())
			if g.policy.OnStateChange != nil {
				g.policy.OnStateChange(name, to.String())
			}
		},
	})
	g.breakers[operation] = cb
	return cb
}

// IsCircuitOpen reports whether err is a breaker refusal rather than an
// operation failure.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
