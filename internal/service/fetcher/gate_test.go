package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingPolicy records which attempt numbers it was consulted for
type recordingPolicy struct {
	delay time.Duration
	calls []int
}

func (p *recordingPolicy) NextDelay(attempt int) time.Duration {
	p.calls = append(p.calls, attempt)
	return p.delay
}

func TestGate_BudgetEnforced(t *testing.T) {
	policy := &recordingPolicy{delay: 10 * time.Millisecond}
	g := newGate(policy, 3)

	for i := 1; i <= 3; i++ {
		delay, ok := g.Next()
		assert.True(t, ok, "attempt %d should be within budget", i)
		assert.Equal(t, 10*time.Millisecond, delay)
		assert.Equal(t, i, g.Attempts())
	}

	_, ok := g.Next()
	assert.False(t, ok, "budget of 3 must refuse the fourth attempt")
	assert.Equal(t, 3, g.Attempts(), "refused attempt must not be counted")
}

func TestGate_PolicyConsultedWithAttemptNumber(t *testing.T) {
	policy := &recordingPolicy{}
	g := newGate(policy, 5)

	g.Next()
	g.Next()
	g.Next()

	assert.Equal(t, []int{1, 2, 3}, policy.calls)
}

func TestGate_ZeroBudget(t *testing.T) {
	g := newGate(&recordingPolicy{}, 0)
	_, ok := g.Next()
	assert.False(t, ok)
	assert.Zero(t, g.Attempts())
}
