package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// TaskRunStatus represents the outcome recorded for one task execution.
type TaskRunStatus string

const (
	TaskRunRunning TaskRunStatus = "running"
	TaskRunDone    TaskRunStatus = "done"
	TaskRunFailed  TaskRunStatus = "failed"
)

// Run is one invocation of the pipeline or of a make target.
type Run struct {
	ID         string     `json:"id"`
	InputDir   string     `json:"input_dir"`
	Executor   string     `json:"executor"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
}

// TaskRun is the cache record for one task, keyed by its content hash.
type TaskRun struct {
	Hash         string        `json:"hash"`
	RunID        string        `json:"run_id"`
	TaskID       string        `json:"task_id"`
	Kind         string        `json:"kind"`
	Entity       string        `json:"entity,omitempty"`
	Output       string        `json:"output"`
	OutputDigest string        `json:"output_digest,omitempty"`
	Status       TaskRunStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Run operations

// CreateRun inserts a new run.
func (db *DB) CreateRun(r *Run) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, input_dir, executor, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.InputDir, r.Executor, formatTime(r.StartedAt), string(r.Status))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun sets the final status and finish time of a run.
func (db *DB) FinishRun(id string, status RunStatus) error {
	result, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", id)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil, nil when no run matches.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, input_dir, executor, started_at, finished_at, status
		FROM runs WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `
		SELECT id, input_dir, executor, started_at, finished_at, status
		FROM runs ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	if err := s.Scan(&r.ID, &r.InputDir, &r.Executor, &startedAt, &finishedAt, &r.Status); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// Task run operations

// RecordTaskRun inserts or replaces the record for tr.Hash.
func (db *DB) RecordTaskRun(tr *TaskRun) error {
	var completedAt any
	if tr.CompletedAt != nil {
		completedAt = formatTime(*tr.CompletedAt)
	}
	_, err := db.Exec(`
		INSERT OR REPLACE INTO task_runs
			(hash, run_id, task_id, kind, entity, output, output_digest, status, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tr.Hash, tr.RunID, tr.TaskID, tr.Kind, tr.Entity, tr.Output, tr.OutputDigest,
		string(tr.Status), tr.Error, formatTime(tr.StartedAt), completedAt)
	if err != nil {
		return fmt.Errorf("record task run: %w", err)
	}
	return nil
}

// GetTaskRun retrieves the record for a task hash. Returns nil, nil when absent.
func (db *DB) GetTaskRun(hash string) (*TaskRun, error) {
	row := db.QueryRow(`
		SELECT hash, run_id, task_id, kind, entity, output, output_digest, status, error, started_at, completed_at
		FROM task_runs WHERE hash = ?
	`, hash)

	tr, err := scanTaskRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task run: %w", err)
	}
	return tr, nil
}

// ListTaskRuns returns the task records written by a run, in start order.
func (db *DB) ListTaskRuns(runID string) ([]TaskRun, error) {
	rows, err := db.Query(`
		SELECT hash, run_id, task_id, kind, entity, output, output_digest, status, error, started_at, completed_at
		FROM task_runs WHERE run_id = ? ORDER BY started_at, task_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", err)
	}
	defer rows.Close()

	var out []TaskRun
	for rows.Next() {
		tr, err := scanTaskRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		out = append(out, *tr)
	}
	return out, rows.Err()
}

func scanTaskRun(s rowScanner) (*TaskRun, error) {
	var tr TaskRun
	var entity, digest, errMsg, completedAt sql.NullString
	var startedAt string
	if err := s.Scan(&tr.Hash, &tr.RunID, &tr.TaskID, &tr.Kind, &entity, &tr.Output, &digest,
		&tr.Status, &errMsg, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	tr.Entity = entity.String
	tr.OutputDigest = digest.String
	tr.Error = errMsg.String
	tr.StartedAt, _ = parseTime(startedAt)
	tr.CompletedAt = parseNullableTime(completedAt)
	return &tr, nil
}
