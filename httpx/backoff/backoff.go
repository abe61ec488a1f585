// Package backoff computes the wait between retry attempts.
package backoff

import (
	"math/rand/v2"
	"time"
)

// Backoff returns the delay before retry number retry (0-indexed).
type Backoff interface {
	Next(retry int) time.Duration
}

// Func adapts a function to Backoff.
type Func func(retry int) time.Duration

func (f Func) Next(retry int) time.Duration {
	return f(retry)
}

// ConstantBackoff waits Interval before every retry.
type ConstantBackoff struct {
	Interval time.Duration
}

func NewConstantBackoff(interval time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Interval: interval}
}

func (c *ConstantBackoff) Next(int) time.Duration {
	return c.Interval
}

// ExponentialBackoff multiplies Initial by Factor (2 when zero) for every
// retry and never exceeds Max when Max is set. With Jitter the delay is drawn
// uniformly from [0, delay].
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  bool
}

// NewExponentialBackoff starts at 100ms, doubles, caps at 30s and jitters.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial: 100 * time.Millisecond,
		Max:     30 * time.Second,
		Factor:  2,
		Jitter:  true,
	}
}

func (e *ExponentialBackoff) Next(retry int) time.Duration {
	factor := e.Factor
	if factor <= 0 {
		factor = 2
	}

	delay := float64(e.Initial)
	for i := 0; i < retry; i++ {
		delay *= factor
		if e.Max > 0 && delay >= float64(e.Max) {
			delay = float64(e.Max)
			break
		}
		// past this a Duration overflows
		if delay >= float64(1<<62) {
			delay = float64(1 << 62)
			break
		}
	}

	if e.Jitter {
		delay *= rand.Float64()
	}
	return time.Duration(delay)
}
