// Package store persists run history and per-stage progress in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run lifecycle states.
const (
	RunQueued   RunStatus = "queued"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// RunParams are the request parameters of a recorded run.
type RunParams struct {
	Codes          []string `json:"codes"`
	NetworkType    string   `json:"network_type"`
	BufferMeters   float64  `json:"buffer_meters"`
	OutputPath     string   `json:"output_path"`
	BoundarySource string   `json:"boundary_source,omitempty"`
}

// RunResult is the recorded outcome of a completed run.
type RunResult struct {
	OutputPath string   `json:"output_path"`
	Layers     []string `json:"layers"`
}

// Run is one pipeline execution.
type Run struct {
	ID        string
	Params    RunParams
	Status    RunStatus
	Result    *RunResult
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stage is one recorded pipeline stage event of a run.
type Stage struct {
	ID        string
	RunID     string
	Code      string
	Name      string
	Status    string
	Detail    string
	StartedAt time.Time
}

// Store records runs in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_stages (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	code       TEXT NOT NULL,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	detail     TEXT,
	started_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_stages_run_id ON run_stages(run_id);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(migration)
	return eris.Wrap(err, "store: migrate")
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun records a queued run and returns it.
func (s *Store) CreateRun(ctx context.Context, params RunParams) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(paramsJSON), string(RunQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert run")
	}

	return &Run{ID: id, Params: params, Status: RunQueued, CreatedAt: now, UpdatedAt: now}, nil
}

// SetRunning marks a run as running.
func (s *Store) SetRunning(ctx context.Context, runID string) error {
	return s.updateStatus(ctx, runID, RunRunning, nil, "")
}

// CompleteRun marks a run complete with its result.
func (s *Store) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	return s.updateStatus(ctx, runID, RunComplete, result, "")
}

// FailRun marks a run failed with the cause's message.
func (s *Store) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.updateStatus(ctx, runID, RunFailed, nil, msg)
}

func (s *Store) updateStatus(ctx context.Context, runID string, status RunStatus, result *RunResult, errMsg string) error {
	var resultJSON sql.NullString
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return eris.Wrap(err, "store: marshal result")
		}
		resultJSON = sql.NullString{String: string(data), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = COALESCE(?, result), error = ?, updated_at = ? WHERE id = ?`,
		string(status), resultJSON, errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: update run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return eris.Errorf("store: run not found: %s", runID)
	}
	return nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, params, status, result, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("store: run not found: %s", runID)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, params, status, result, error, created_at, updated_at
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "store: iterate runs")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var paramsJSON string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &paramsJSON, &r.Status, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal params")
	}
	if resultJSON.Valid {
		r.Result = &RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal result")
		}
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}

// AddStage records a pipeline stage event for a run.
func (s *Store) AddStage(ctx context.Context, runID, code, name, status, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_stages (id, run_id, code, name, status, detail, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, code, name, status, detail, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: insert stage for run %s", runID)
}

// RunStages returns the recorded stage events of a run in insertion order.
func (s *Store) RunStages(ctx context.Context, runID string) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, code, name, status, detail, started_at
		 FROM run_stages WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "store: list stages of run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var stages []Stage
	for rows.Next() {
		var st Stage
		var detail sql.NullString
		if err := rows.Scan(&st.ID, &st.RunID, &st.Code, &st.Name, &st.Status, &detail, &st.StartedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan stage")
		}
		if detail.Valid {
			st.Detail = detail.String
		}
		stages = append(stages, st)
	}
	return stages, eris.Wrap(rows.Err(), "store: iterate stages")
}
