package executor

import (
	"context"
)

// Inline runs each job in the calling goroutine, one at a time.
type Inline struct {
	step StepFunc
}

// NewInline creates the default executor.
func NewInline(step StepFunc) *Inline {
	return &Inline{step: step}
}

func (e *Inline) Name() string { return NameDefault }

func (e *Inline) Slots() int { return 1 }

// Run executes the job's step unless ctx is already done.
func (e *Inline) Run(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.step(ctx, job.Task)
}

func (e *Inline) Close() error { return nil }

var _ Executor = (*Inline)(nil)
