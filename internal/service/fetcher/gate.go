package fetcher

import (
	"sync"
	"time"

	"github.com/vertextoedge/resumefetch/internal/port"
)

// gate enforces the transient-failure retry budget and delegates delay
// decisions to the injected backoff policy. It is only consulted for
// retryable-transient failures: premature closes resume unconditionally
// and fatal classifications bypass it entirely.
type gate struct {
	policy port.BackoffPolicy
	budget int

	mu       sync.Mutex
	attempts int
}

func newGate(policy port.BackoffPolicy, budget int) *gate {
	return &gate{policy: policy, budget: budget}
}

// Next asks for one more attempt. It returns the delay to wait before
// retrying, or false when the budget is exhausted.
func (g *gate) Next() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.attempts >= g.budget {
		return 0, false
	}
	g.attempts++
	return g.policy.NextDelay(g.attempts), true
}

// Attempts returns the number of retries granted so far
func (g *gate) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}
