package models

import (
	"sort"
	"time"
)

// TaskKind identifies which pipeline step a task runs.
type TaskKind string

const (
	// TaskKindDigest cleaves one protein into its peptide set.
	TaskKindDigest TaskKind = "digest"
	// TaskKindCount tallies peptides and target residues for one protein.
	TaskKindCount TaskKind = "count"
	// TaskKindPlot renders the count row of one protein as a chart.
	TaskKindPlot TaskKind = "plot"
	// TaskKindReport aggregates every count row into a single table.
	TaskKindReport TaskKind = "report"
	// TaskKindArchive bundles plots and the report into a tarball.
	TaskKindArchive TaskKind = "archive"
	// TaskKindCommand runs a shell command from a rule file.
	TaskKindCommand TaskKind = "command"
)

// Valid returns true if the kind is a known value.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindDigest, TaskKindCount, TaskKindPlot, TaskKindReport, TaskKindArchive, TaskKindCommand:
		return true
	default:
		return false
	}
}

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task has been handed to an executor.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusDone indicates the task completed successfully or was served from cache.
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusDone, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Task is one step of a pipeline run.
type Task struct {
	// ID is unique within a run, e.g. "digest:KLF4" or "report".
	ID string `json:"id"`
	// Kind selects the step implementation.
	Kind TaskKind `json:"kind"`
	// Entity is the protein the task works on; empty for aggregate steps.
	Entity string `json:"entity,omitempty"`
	// Inputs are the files the task reads. Their content feeds the cache key.
	Inputs []string `json:"inputs,omitempty"`
	// Output is the file the task produces.
	Output string `json:"output"`
	// Params holds step options such as the cleavage pattern or target residue.
	Params map[string]string `json:"params,omitempty"`
	// Command is the shell command for TaskKindCommand tasks.
	Command string `json:"command,omitempty"`
	// DependsOn lists task IDs that must complete before this task.
	DependsOn []string `json:"depends_on,omitempty"`
	// Version is bumped when a step's behavior changes, invalidating cached results.
	Version int `json:"version"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Cached is set when the result was reused from an earlier run.
	Cached bool `json:"cached,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// RetryCount is the number of times this task has been retried.
	RetryCount int `json:"retry_count,omitempty"`
	// CreatedAt is when the task was planned.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task finished, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Param returns the named parameter, or "" when unset.
func (t *Task) Param(key string) string {
	if t.Params == nil {
		return ""
	}
	return t.Params[key]
}

// ParamKeys returns the parameter names in sorted order.
func (t *Task) ParamKeys() []string {
	keys := make([]string, 0, len(t.Params))
	for k := range t.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarkDone records successful completion.
func (t *Task) MarkDone(cached bool) {
	now := time.Now()
	t.Status = TaskStatusDone
	t.Cached = cached
	t.Error = ""
	t.CompletedAt = &now
}

// MarkFailed records a failure with its cause.
func (t *Task) MarkFailed(err error) {
	now := time.Now()
	t.Status = TaskStatusFailed
	if err != nil {
		t.Error = err.Error()
	}
	t.CompletedAt = &now
}
