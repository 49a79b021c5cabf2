// Package backoff provides the stock port.BackoffPolicy implementations.
// The engine never hard-codes a backoff algorithm; anything satisfying
// the policy interface can be injected instead.
package backoff

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vertextoedge/resumefetch/internal/port"
)

// Default delays
const (
	DefaultMinDelay = 100 * time.Millisecond
	DefaultMaxDelay = 5 * time.Second
)

// Exponential is an exponential backoff with jitter, capped at a
// maximum interval. The retry budget lives in the engine's gate, not
// here, so the underlying policy never stops on elapsed time.
type Exponential struct {
	bo  *backoff.ExponentialBackOff
	max time.Duration
}

// Ensure Exponential implements port.BackoffPolicy
var _ port.BackoffPolicy = (*Exponential)(nil)

// NewExponential creates an exponential policy between minDelay and
// maxDelay. Non-positive arguments fall back to the defaults.
func NewExponential(minDelay, maxDelay time.Duration) *Exponential {
	if minDelay <= 0 {
		minDelay = DefaultMinDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = minDelay
	bo.MaxInterval = maxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()

	return &Exponential{bo: bo, max: maxDelay}
}

// NextDelay implements port.BackoffPolicy
func (e *Exponential) NextDelay(_ int) time.Duration {
	d := e.bo.NextBackOff()
	if d == backoff.Stop || d > e.max {
		return e.max
	}
	return d
}

// Constant is a fixed-delay policy, mostly useful in tests
type Constant time.Duration

// Ensure Constant implements port.BackoffPolicy
var _ port.BackoffPolicy = Constant(0)

// NextDelay implements port.BackoffPolicy
func (c Constant) NextDelay(_ int) time.Duration {
	return time.Duration(c)
}
