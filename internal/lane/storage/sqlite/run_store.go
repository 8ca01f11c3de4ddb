package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lanetrack/internal/timeutil"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("lane run not found")

// Run is one tracker pass over an ordered mask sequence.
type Run struct {
	RunID       string          `json:"run_id"`
	Source      string          `json:"source"`
	ParamsJSON  json.RawMessage `json:"params_json,omitempty"`
	CreatedAt   int64           `json:"created_at"`
	FinishedAt  int64           `json:"finished_at,omitempty"`
	FrameCount  int             `json:"frame_count"`
	StaleCount  int             `json:"stale_count"`
	FailedCount int             `json:"failed_count"`
}

// RunStore provides persistence for tracking runs.
type RunStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewRunStore creates a new RunStore stamped by the wall clock.
func NewRunStore(db *sql.DB) *RunStore {
	return NewRunStoreWithClock(db, timeutil.RealClock{})
}

// NewRunStoreWithClock creates a RunStore that takes CreatedAt and
// FinishedAt from clock.
func NewRunStoreWithClock(db *sql.DB, clock timeutil.Clock) *RunStore {
	return &RunStore{db: db, clock: clock}
}

// Create persists a new run. If RunID is empty, a UUID is generated.
func (s *RunStore) Create(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO lane_runs (run_id, source, params_json, created_at)
			VALUES (?, ?, ?, ?)`,
			run.RunID, run.Source, paramsStr, run.CreatedAt,
		)
		return err
	})
}

// Finish records the final counters of a run.
func (s *RunStore) Finish(runID string, frames, stale, failed int) error {
	finishedAt := s.clock.Now().UnixNano()
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`
			UPDATE lane_runs
			SET finished_at = ?, frame_count = ?, stale_count = ?, failed_count = ?
			WHERE run_id = ?`,
			finishedAt, frames, stale, failed, runID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}

// Get returns a single run by ID.
func (s *RunStore) Get(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, source, params_json, created_at, finished_at,
		       frame_count, stale_count, failed_count
		FROM lane_runs
		WHERE run_id = ?`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

// List returns all runs, newest first.
func (s *RunStore) List() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, source, params_json, created_at, finished_at,
		       frame_count, stale_count, failed_count
		FROM lane_runs
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Delete removes a run and, through the foreign key, its frames.
func (s *RunStore) Delete(runID string) error {
	return retryOnBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM lane_runs WHERE run_id = ?`, runID)
		return err
	})
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var paramsStr sql.NullString
	var finishedAt sql.NullInt64
	err := row.Scan(
		&r.RunID, &r.Source, &paramsStr, &r.CreatedAt, &finishedAt,
		&r.FrameCount, &r.StaleCount, &r.FailedCount,
	)
	if err != nil {
		return nil, err
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Int64
	}
	return &r, nil
}
