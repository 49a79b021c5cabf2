package domain

// SessionState is the explicit state of a fetch session
type SessionState int

// Session states
const (
	StateIdle SessionState = iota
	StateAwaitingResponse
	StateStreaming
	StateBackingOff
	StateCompleted
	StateFailed
	StateAborted
)

// String returns a human-readable name for the state
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateStreaming:
		return "streaming"
	case StateBackingOff:
		return "backing_off"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal returns true if no further transitions are possible
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}
