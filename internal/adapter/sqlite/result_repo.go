package sqlite

import (
	"database/sql"
	"time"

	"github.com/vertextoedge/resumefetch/internal/port"
)

// CreateRun inserts a new run and fills in its ID
func (s *Store) CreateRun(run *port.Run) error {
	query := `
		INSERT INTO runs (target, sessions, started_at)
		VALUES (?, ?, ?)
	`
	result, err := s.db.Exec(query, run.Target, run.Sessions, run.StartedAt)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

// FinishRun marks the run as finished
func (s *Store) FinishRun(runID int64) error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, time.Now(), runID)
	return err
}

// RecordFetch inserts the result of one fetch session
func (s *Store) RecordFetch(res *port.FetchResult) error {
	query := `
		INSERT INTO fetches (run_id, worker, bytes, attempts, duration_ms, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var errText sql.NullString
	if res.Error != "" {
		errText = sql.NullString{String: res.Error, Valid: true}
	}
	result, err := s.db.Exec(query,
		res.RunID, res.Worker, res.Bytes, res.Attempts,
		res.Duration.Milliseconds(), res.Outcome, errText)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = id
	return nil
}

// RecordSample inserts a resource usage sample
func (s *Store) RecordSample(sample *port.ResourceSample) error {
	query := `
		INSERT INTO samples (run_id, taken_at, resident_mem, open_fds, goroutines)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		sample.RunID, sample.TakenAt, sample.ResidentMem, sample.OpenFDs, sample.Goroutines)
	return err
}

// Summary aggregates the results of a run
func (s *Store) Summary(runID int64) (*port.RunSummary, error) {
	summary := &port.RunSummary{}

	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			   COALESCE(SUM(bytes), 0)
		FROM fetches WHERE run_id = ?
	`
	err := s.db.QueryRow(query, port.OutcomeCompleted, port.OutcomeFailed, runID).Scan(
		&summary.Total, &summary.Completed, &summary.Failed, &summary.TotalBytes)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(
		`SELECT COALESCE(MAX(resident_mem), 0) FROM samples WHERE run_id = ?`, runID,
	).Scan(&summary.MaxRSS)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
