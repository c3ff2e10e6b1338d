package state

import (
	"io"
	"time"
)

// RunStore handles run history persistence.
type RunStore interface {
	CreateRun(r *Run) error
	FinishRun(id string, status RunStatus) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	RecoverInterruptedRuns() ([]Run, error)
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// TaskRunStore handles the per-task cache records.
type TaskRunStore interface {
	RecordTaskRun(tr *TaskRun) error
	GetTaskRun(hash string) (*TaskRun, error)
	ListTaskRuns(runID string) ([]TaskRun, error)
	CachedResult(hash string) (*TaskRun, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// StateStore is everything the pipeline needs from persistent state.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	TaskRunStore
}

var (
	_ StateStore   = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ TaskRunStore = (*DB)(nil)
)
