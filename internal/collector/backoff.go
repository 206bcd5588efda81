package collector

import (
	"math"
	"time"
)

// Backoff is the caller-supplied retry policy for systemic failures.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int // consecutive systemic failures before the target stops; 0 = never
}

// Delay returns the wait before retry number attempt (1-based):
// Initial * Multiplier^(attempt-1), capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit a Duration.
	if d >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt consecutive failures use up the policy.
func (b Backoff) Exhausted(attempt int) bool {
	return b.MaxAttempts > 0 && attempt >= b.MaxAttempts
}
