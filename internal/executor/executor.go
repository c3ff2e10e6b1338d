// Package executor runs pipeline tasks. An executor decides where a task's
// work happens (in this goroutine, on a worker pool, or in a child process)
// and how many tasks may run at once.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/ShayCichocki/digestflow/internal/exec"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// Executor names accepted by New.
const (
	NameDefault = "default"
	NameThreads = "threads"
	NameProcess = "process"
)

// ErrUnknownExecutor is returned by New for names it does not implement,
// including the cloud batch executor.
var ErrUnknownExecutor = errors.New("unknown executor")

// Job is one unit of work handed to an executor.
type Job struct {
	Task *models.Task
	// Attempt counts from 1; retries increment it.
	Attempt int
}

// StepFunc performs a task in the current process.
type StepFunc func(ctx context.Context, t *models.Task) error

// ArgvFunc builds the command line that performs a task in a child process.
type ArgvFunc func(t *models.Task) ([]string, error)

// Executor runs jobs. Run blocks until the job finishes; callers may invoke
// it from up to Slots() goroutines at once.
type Executor interface {
	Name() string
	Slots() int
	Run(ctx context.Context, job Job) error
	Close() error
}

// Config selects and configures an executor.
type Config struct {
	// Name is one of NameDefault, NameThreads, NameProcess.
	Name string
	// Workers bounds concurrency for threads and process. Zero means NumCPU.
	Workers int
	// Step is required by the in-process executors.
	Step StepFunc
	// Argv is required by the process executor.
	Argv ArgvFunc
	// Runner runs child processes. Defaults to exec.NewRunner().
	Runner exec.CommandRunner
	// WorkDir is the working directory of child processes.
	WorkDir string
}

// Names lists the executors New accepts.
func Names() []string {
	return []string{NameDefault, NameThreads, NameProcess}
}

// New builds the executor named by cfg.Name.
func New(cfg Config) (Executor, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case "", NameDefault:
		if cfg.Step == nil {
			return nil, fmt.Errorf("%s executor: step function is required", NameDefault)
		}
		return NewInline(cfg.Step), nil
	case NameThreads:
		if cfg.Step == nil {
			return nil, fmt.Errorf("%s executor: step function is required", NameThreads)
		}
		return NewThreads(cfg.Step, workers), nil
	case NameProcess:
		if cfg.Argv == nil {
			return nil, fmt.Errorf("%s executor: argv function is required", NameProcess)
		}
		runner := cfg.Runner
		if runner == nil {
			runner = exec.NewRunner()
		}
		return NewProcess(runner, cfg.Argv, workers, cfg.WorkDir), nil
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownExecutor, cfg.Name, strings.Join(Names(), ", "))
	}
}
