package port

import "time"

// Fetch outcome constants
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// Run represents one stress tool invocation
type Run struct {
	ID        int64
	Target    string
	Sessions  int
	StartedAt time.Time
}

// FetchResult represents the outcome of one fetch session within a run
type FetchResult struct {
	ID       int64
	RunID    int64
	Worker   int
	Bytes    int64
	Attempts int
	Duration time.Duration
	Outcome  string
	Error    string
}

// ResourceSample is a point-in-time snapshot of process resource usage
type ResourceSample struct {
	RunID       int64
	TakenAt     time.Time
	ResidentMem uint64
	OpenFDs     int
	Goroutines  int
}

// RunSummary aggregates the fetch results of a run
type RunSummary struct {
	Total      int
	Completed  int
	Failed     int
	TotalBytes int64
	MaxRSS     uint64
}

// ResultStore persists stress run results
type ResultStore interface {
	// CreateRun inserts a new run and fills in its ID
	CreateRun(run *Run) error

	// FinishRun marks the run as finished
	FinishRun(runID int64) error

	// RecordFetch inserts the result of one fetch session
	RecordFetch(res *FetchResult) error

	// RecordSample inserts a resource usage sample
	RecordSample(sample *ResourceSample) error

	// Summary aggregates the results of a run
	Summary(runID int64) (*RunSummary, error)
}
