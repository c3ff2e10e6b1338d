package executor

import (
	"context"
	"fmt"
	"log"

	"github.com/ShayCichocki/digestflow/internal/exec"
)

// Process runs each job as a child process, typically the digestflow binary
// re-invoked with a step subcommand.
type Process struct {
	runner  exec.CommandRunner
	argv    ArgvFunc
	workers int
	workDir string
}

// NewProcess creates a child-process executor.
func NewProcess(runner exec.CommandRunner, argv ArgvFunc, workers int, workDir string) *Process {
	if workers < 1 {
		workers = 1
	}
	return &Process{runner: runner, argv: argv, workers: workers, workDir: workDir}
}

func (e *Process) Name() string { return NameProcess }

func (e *Process) Slots() int { return e.workers }

// Run builds the job's command line and waits for the child to exit.
func (e *Process) Run(ctx context.Context, job Job) error {
	argv, err := e.argv(job.Task)
	if err != nil {
		return fmt.Errorf("build command for %s: %w", job.Task.ID, err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("build command for %s: empty command line", job.Task.ID)
	}

	out, err := e.runner.Run(ctx, e.workDir, argv[0], argv[1:]...)
	if err != nil {
		return fmt.Errorf("task %s: %w", job.Task.ID, err)
	}
	if len(out) > 0 {
		log.Printf("[executor] %s: %s", job.Task.ID, out)
	}
	return nil
}

func (e *Process) Close() error { return nil }

var _ Executor = (*Process)(nil)
