package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatusError_Error(t *testing.T) {
	tests := []struct {
		name string
		code int
		want string
	}{
		{name: "not found", code: 404, want: "unexpected status 404"},
		{name: "server error", code: 503, want: "unexpected status 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			se := NewStatusError(tt.code)
			if got := se.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatusError_Transient(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{code: 400, want: false},
		{code: 404, want: false},
		{code: 499, want: false},
		{code: 500, want: true},
		{code: 503, want: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			if got := NewStatusError(tt.code).Transient(); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	te := NewTransientError(underlying, 3)

	if got := te.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
	if !errors.Is(te, underlying) {
		t.Error("errors.Is should find the underlying failure")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transient error",
			err:  NewTransientError(errors.New("reset"), 2),
			want: true,
		},
		{
			name: "wrapped transient error",
			err:  fmt.Errorf("fetch: %w", NewTransientError(errors.New("reset"), 2)),
			want: true,
		},
		{
			name: "plain error",
			err:  errors.New("reset"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatalProtocol(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "checksum mismatch", err: ErrChecksumMismatch, want: true},
		{name: "resource changed", err: ErrResourceChanged, want: true},
		{name: "range ignored", err: ErrRangeNotSupported, want: true},
		{name: "wrapped", err: fmt.Errorf("verify: %w", ErrChecksumMismatch), want: true},
		{name: "status error", err: NewStatusError(500), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalProtocol(tt.err); got != tt.want {
				t.Errorf("IsFatalProtocol() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatalClient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "404", err: NewStatusError(404), want: true},
		{name: "wrapped 403", err: fmt.Errorf("fetch: %w", NewStatusError(403)), want: true},
		{name: "500", err: NewStatusError(500), want: false},
		{name: "plain error", err: errors.New("nope"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatalClient(tt.err); got != tt.want {
				t.Errorf("IsFatalClient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResourceMetadata_Matches(t *testing.T) {
	tests := []struct {
		name string
		meta string
		etag string
		want bool
	}{
		{name: "equal tags", meta: `"abc"`, etag: `"abc"`, want: true},
		{name: "different tags", meta: `"abc"`, etag: `"def"`, want: false},
		{name: "captured tag empty", meta: "", etag: `"abc"`, want: true},
		{name: "response tag empty", meta: `"abc"`, etag: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ResourceMetadata{ETag: tt.meta}
			if got := m.Matches(tt.etag); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.etag, got, tt.want)
			}
		})
	}
}

func TestSessionState_Terminal(t *testing.T) {
	terminal := []SessionState{StateCompleted, StateFailed, StateAborted}
	live := []SessionState{StateIdle, StateAwaitingResponse, StateStreaming, StateBackingOff}

	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
