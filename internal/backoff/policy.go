// Package backoff provides exponential backoff with jitter for provider
// rate-limit retry, wrapping cenkalti/backoff/v4.
package backoff

import (
	"math"
	"math/rand"
	"time"

	cenkalti "github.com/cenkalti/backoff/v4"
)

// Policy holds the parameters for exponential backoff calculation.
type Policy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// DefaultPolicy is used when a provider reports a rate-limit error with no
// retry-after hint.
func DefaultPolicy() Policy {
	return Policy{InitialMs: 100, MaxMs: 30000, Factor: 2, Jitter: 0.1}
}

// AggressivePolicy is a preset with shorter delays than DefaultPolicy.
func AggressivePolicy() Policy {
	return Policy{InitialMs: 50, MaxMs: 5000, Factor: 1.5, Jitter: 0.05}
}

// exponential builds a cenkalti ExponentialBackOff from the policy. Each
// call returns a freshly reset generator so attempt numbering starts over.
func (p Policy) exponential() *cenkalti.ExponentialBackOff {
	b := cenkalti.NewExponentialBackOff()
	b.InitialInterval = time.Duration(p.InitialMs) * time.Millisecond
	b.MaxInterval = time.Duration(p.MaxMs) * time.Millisecond
	b.Multiplier = p.Factor
	// Compute adds jitter itself, upward only.
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // caller bounds attempts, not elapsed wall time
	b.Reset()
	return b
}

// Compute returns the delay to wait before the given attempt (1-indexed),
// driving cenkalti's generator forward attempt times from a fresh state,
// then adding base*Jitter*rand (rand in [0,1)) and capping at MaxMs.
func Compute(policy Policy, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	b := policy.exponential()
	var d time.Duration
	for i := 0; i < attempt; i++ {
		d = b.NextBackOff()
	}
	maxD := time.Duration(policy.MaxMs) * time.Millisecond
	if d == cenkalti.Stop {
		d = maxD
	}
	d += time.Duration(float64(d) * policy.Jitter * rand.Float64())
	if d > maxD {
		d = maxD
	}
	return d
}

// ComputeWithRand is a pure reimplementation of the formula Compute
// applies, with the random value supplied by the caller, so unit tests can
// assert exact durations.
func ComputeWithRand(policy Policy, attempt int, randomValue float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	jitterAmount := base * policy.Jitter * randomValue
	total := math.Min(policy.MaxMs, base+jitterAmount)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// ConservativePolicy is a preset with longer spacing than DefaultPolicy.
func ConservativePolicy() Policy {
	return Policy{InitialMs: 500, MaxMs: 60000, Factor: 2.5, Jitter: 0.2}
}
