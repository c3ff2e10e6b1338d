package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecoverInterruptedRuns marks every run still in the running state as
// interrupted, along with its unfinished task records. It is called before a
// new run starts, when no other run can legitimately be in progress.
func (db *DB) RecoverInterruptedRuns() ([]Run, error) {
	running := RunRunning
	runs, err := db.listRunsByStatus(running)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}

	now := formatTime(time.Now())
	err = db.Transaction(func(tx *sql.Tx) error {
		for _, r := range runs {
			if _, err := tx.Exec(`
				UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
			`, string(RunInterrupted), now, r.ID); err != nil {
				return fmt.Errorf("mark run %s interrupted: %w", r.ID, err)
			}
			if _, err := tx.Exec(`
				UPDATE task_runs SET status = ?, error = ?, completed_at = ?
				WHERE run_id = ? AND status = ?
			`, string(TaskRunFailed), "interrupted", now, r.ID, string(TaskRunRunning)); err != nil {
				return fmt.Errorf("mark tasks of run %s interrupted: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range runs {
		runs[i].Status = RunInterrupted
	}
	return runs, nil
}

func (db *DB) listRunsByStatus(status RunStatus) ([]Run, error) {
	rows, err := db.Query(`
		SELECT id, input_dir, executor, started_at, finished_at, status
		FROM runs WHERE status = ? ORDER BY started_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s runs: %w", status, err)
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
