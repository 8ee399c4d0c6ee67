package resilience

import "time"

// Verdict is how a failed attempt is treated.
type Verdict struct {
	Retry        bool
	CountFailure bool
}

// Policy bounds retries and configures the breaker of a Guard.
type Policy struct {
	Attempts int
	Backoff  Backoff
	Breaker  BreakerPolicy

	// Classify decides per error. Nil counts every error as a permanent
	// failure.
	Classify func(error) Verdict
	// OnStateChange observes breaker transitions.
	OnStateChange func(operation, state string)
}

type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

type BreakerPolicy struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenTimeout   time.Duration
	HalfOpenCalls uint32
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts: 2,
		Backoff: Backoff{
			Initial:    250 * time.Millisecond,
			Max:        time.Second,
			Multiplier: 2,
		},
		Breaker: BreakerPolicy{
			Enabled:       true,
			MinRequests:   5,
			FailureRatio:  0.5,
			OpenTimeout:   30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// withDefaults fills unset or out-of-range values from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.Backoff.Initial <= 0 {
		p.Backoff.Initial = def.Backoff.Initial
	}
	if p.Backoff.Max < p.Backoff.Initial {
		p.Backoff.Max = max(def.Backoff.Max, p.Backoff.Initial)
	}
	if p.Backoff.Multiplier < 1 {
		p.Backoff.Multiplier = def.Backoff.Multiplier
	}
	if p.Breaker.MinRequests == 0 {
		p.Breaker.MinRequests = def.Breaker.MinRequests
	}
	if p.Breaker.FailureRatio <= 0 || p.Breaker.FailureRatio > 1 {
		p.Breaker.FailureRatio = def.Breaker.FailureRatio
	}
	if p.Breaker.OpenTimeout <= 0 {
		p.Breaker.OpenTimeout = def.Breaker.OpenTimeout
	}
	if p.Breaker.HalfOpenCalls == 0 {
		p.Breaker.HalfOpenCalls = def.Breaker.HalfOpenCalls
	}
	if p.Classify == nil {
		p.Classify = func(error) Verdict { return Verdict{CountFailure: true} }
	}
	return p
}

// next returns the wait after one at d.
func (b Backoff) next(d time.Duration) time.Duration {
	return min(time.Duration(float64(d)*b.Multiplier), b.Max)
}
