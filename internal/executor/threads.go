package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// errClosed is returned by Run after Close.
var errClosed = errors.New("executor closed")

type request struct {
	ctx  context.Context
	job  Job
	done chan error
}

// Threads runs jobs on a fixed pool of worker goroutines started on first use.
type Threads struct {
	step    StepFunc
	workers int

	jobs   chan request
	start  sync.Once
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewThreads creates a pool executor with the given number of workers.
func NewThreads(step StepFunc, workers int) *Threads {
	if workers < 1 {
		workers = 1
	}
	return &Threads{
		step:    step,
		workers: workers,
		jobs:    make(chan request),
	}
}

func (e *Threads) Name() string { return NameThreads }

func (e *Threads) Slots() int { return e.workers }

// Run hands the job to a worker and waits for its result.
func (e *Threads) Run(ctx context.Context, job Job) error {
	e.start.Do(e.spawn)

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return errClosed
	}

	req := request{ctx: ctx, job: job, done: make(chan error, 1)}
	select {
	case e.jobs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Threads) spawn() {
	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.work(i)
	}
}

func (e *Threads) work(id int) {
	defer e.wg.Done()
	for req := range e.jobs {
		req.done <- e.safeStep(req.ctx, req.job, id)
	}
}

func (e *Threads) safeStep(ctx context.Context, job Job, worker int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d: task %s panicked: %v", worker, job.Task.ID, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.step(ctx, job.Task)
}

// Close stops the workers once in-flight jobs finish. Safe to call twice.
func (e *Threads) Close() error {
	e.start.Do(func() {})

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
	return nil
}

var _ Executor = (*Threads)(nil)
