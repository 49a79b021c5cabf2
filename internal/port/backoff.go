package port

import "time"

// BackoffPolicy yields the delay to wait before a retry attempt.
// The engine decides *whether* a failure is eligible for retry; the
// policy only decides how long to wait. Implementations are free to
// apply jitter. attempt is 1-based: the first retry asks for attempt 1.
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}
