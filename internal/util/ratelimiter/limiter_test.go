package ratelimiter

import (
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		delays   []time.Duration // delays before each Allow() call
		want     []bool          // expected Allow() results
	}{
		{
			name:     "first call always allowed",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is blocked",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call after interval is allowed",
			interval: 50 * time.Millisecond,
			delays:   []time.Duration{0, 60 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "multiple rapid calls",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0, 0, 0},
			want:     []bool{true, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.interval)

			for i, delay := range tt.delays {
				if delay > 0 {
					time.Sleep(delay)
				}

				allowed, waitTime := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}

				if !allowed && waitTime <= 0 {
					t.Errorf("call %d: blocked but waitTime = %v, want > 0", i, waitTime)
				}

				if allowed && waitTime != 0 {
					t.Errorf("call %d: allowed but waitTime = %v, want 0", i, waitTime)
				}
			}
		})
	}
}

func TestLimiter_Reset(t *testing.T) {
	interval := 1 * time.Second
	limiter := New(interval)

	// First call - should be allowed
	allowed, _ := limiter.Allow()
	if !allowed {
		t.Fatal("first call should be allowed")
	}

	// Second call immediately - should be blocked
	allowed, _ = limiter.Allow()
	if allowed {
		t.Fatal("second call should be blocked")
	}

	// Reset the limiter
	limiter.Reset()

	// Call after reset - should be allowed immediately
	allowed, _ = limiter.Allow()
	if !allowed {
		t.Fatal("call after reset should be allowed")
	}
}
