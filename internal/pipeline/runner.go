package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/graph"
	"github.com/ShayCichocki/digestflow/internal/state"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// RequiredConfig holds the dependencies a Runner cannot work without.
type RequiredConfig struct {
	Executor executor.Executor
}

// Option configures a Runner.
type Option func(*runnerOptions)

type runnerOptions struct {
	store       state.StateStore
	cache       bool
	retries     int
	backoff     time.Duration
	inputDir    string
	eventBuffer int
	logger      *DebugLogger
}

// WithStore records runs and task results in store and enables caching.
func WithStore(s state.StateStore) Option {
	return func(o *runnerOptions) { o.store = s }
}

// WithCache toggles reuse of cached results. Results are still recorded.
func WithCache(enabled bool) Option {
	return func(o *runnerOptions) { o.cache = enabled }
}

// WithRetries retries a failed task up to n times, waiting backoff*attempt
// between attempts.
func WithRetries(n int, backoff time.Duration) Option {
	return func(o *runnerOptions) {
		o.retries = n
		o.backoff = backoff
	}
}

// WithInputDir sets the input directory recorded with each run.
func WithInputDir(dir string) Option {
	return func(o *runnerOptions) { o.inputDir = dir }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *runnerOptions) { o.eventBuffer = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *runnerOptions) { o.logger = l }
}

// Runner executes a task graph on an executor, skipping tasks whose results
// are already cached.
type Runner struct {
	executor executor.Executor
	opts     runnerOptions
	emitter  *emitter
	logger   *DebugLogger
}

// NewRunner creates a Runner.
func NewRunner(req RequiredConfig, opts ...Option) *Runner {
	o := runnerOptions{cache: true, eventBuffer: 256}
	for _, opt := range opts {
		opt(&o)
	}
	if o.retries < 0 {
		o.retries = 0
	}
	logger := o.logger
	if logger == nil {
		logger = &DebugLogger{}
	}
	return &Runner{
		executor: req.Executor,
		opts:     o,
		emitter:  newEmitter(o.eventBuffer),
		logger:   logger,
	}
}

// Events returns the channel progress events are delivered on. It is never
// closed; a run ends with EventRunDone.
func (r *Runner) Events() <-chan Event {
	return r.emitter.events
}

// TaskResult is the outcome of one task in a run.
type TaskResult struct {
	ID       string            `json:"id"`
	Kind     models.TaskKind   `json:"kind"`
	Entity   string            `json:"entity,omitempty"`
	Output   string            `json:"output"`
	Status   models.TaskStatus `json:"status"`
	Cached   bool              `json:"cached"`
	Attempts int               `json:"attempts,omitempty"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns"`
}

// Summary describes a finished run.
type Summary struct {
	RunID    string          `json:"run_id"`
	Executor string          `json:"executor"`
	Status   state.RunStatus `json:"status"`
	Tasks    int             `json:"tasks"`
	Executed int             `json:"executed"`
	Cached   int             `json:"cached"`
	Failed   int             `json:"failed"`
	Duration time.Duration   `json:"duration_ns"`
	Results  []TaskResult    `json:"results"`
}

type completion struct {
	task     *models.Task
	hash     string
	err      error
	attempts int
	started  time.Time
	duration time.Duration
}

// Run executes tasks until all complete or one fails. The first failure
// cancels outstanding work and is returned; the summary is returned either way.
func (r *Runner) Run(ctx context.Context, tasks []*models.Task) (*Summary, error) {
	start := time.Now()
	runID := uuid.New().String()[:8]
	sum := &Summary{RunID: runID, Executor: r.executor.Name(), Tasks: len(tasks)}
	results := make(map[string]*TaskResult, len(tasks))

	r.logger.Log("[runner] run %s: %d tasks, executor=%s slots=%d cache=%v",
		runID, len(tasks), r.executor.Name(), r.executor.Slots(), r.opts.cache)

	if err := r.beginRun(runID); err != nil {
		return sum, err
	}

	g := graph.New()
	g.SetDebugLog(r.logger.Log)
	if err := g.Build(tasks); err != nil {
		r.endRun(sum, start, state.RunFailed)
		return sum, fmt.Errorf("build task graph: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := r.executor.Slots()
	if slots < 1 {
		slots = 1
	}
	done := make(chan completion, len(tasks))
	inflight := 0
	var firstErr error

	for {
		if firstErr == nil && runCtx.Err() == nil {
			for progressed := true; progressed; {
				progressed = false
				for _, id := range g.GetReady() {
					if inflight >= slots {
						break
					}
					t := g.GetTask(id)
					hash := r.hashTask(t)
					if r.cacheHit(runID, t, hash) {
						t.MarkDone(true)
						g.MarkComplete(t.ID)
						results[t.ID] = &TaskResult{ID: t.ID, Kind: t.Kind, Entity: t.Entity, Output: t.Output, Status: t.Status, Cached: true}
						sum.Cached++
						r.emitter.emit(Event{Type: EventTaskCached, RunID: runID, TaskID: t.ID, Kind: t.Kind, Entity: t.Entity})
						progressed = true
						continue
					}

					t.Status = models.TaskStatusRunning
					inflight++
					r.recordStart(runID, t, hash)
					go func(t *models.Task, hash string) {
						done <- r.execute(runCtx, runID, t, hash)
					}(t, hash)
				}
			}
		}

		if inflight == 0 {
			break
		}

		c := <-done
		inflight--
		t := c.task
		res := &TaskResult{ID: t.ID, Kind: t.Kind, Entity: t.Entity, Output: t.Output, Attempts: c.attempts, Duration: c.duration}
		results[t.ID] = res

		if c.err != nil {
			t.MarkFailed(c.err)
			t.RetryCount = c.attempts - 1
			res.Status, res.Error = t.Status, t.Error
			sum.Failed++
			r.recordFinish(runID, t, c.hash, c.started)
			if firstErr == nil && !errors.Is(c.err, context.Canceled) {
				firstErr = fmt.Errorf("task %s: %w", t.ID, c.err)
				log.Printf("[pipeline] task %s failed: %v", t.ID, c.err)
				cancel()
			}
			r.emitter.emit(Event{Type: EventTaskFailed, RunID: runID, TaskID: t.ID, Kind: t.Kind, Entity: t.Entity, Attempt: c.attempts, Error: c.err, Duration: c.duration})
			continue
		}

		t.MarkDone(false)
		t.RetryCount = c.attempts - 1
		res.Status = t.Status
		sum.Executed++
		g.MarkComplete(t.ID)
		r.recordFinish(runID, t, c.hash, c.started)
		r.emitter.emit(Event{Type: EventTaskDone, RunID: runID, TaskID: t.ID, Kind: t.Kind, Entity: t.Entity, Attempt: c.attempts, Duration: c.duration})
	}

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr == nil && !g.AllComplete() {
		firstErr = fmt.Errorf("run %s stalled with %d of %d tasks complete", runID, len(g.GetCompletedIDs()), g.Size())
	}

	if order, err := g.TopologicalSort(); err == nil {
		for _, id := range order {
			if res, ok := results[id]; ok {
				sum.Results = append(sum.Results, *res)
				continue
			}
			t := g.GetTask(id)
			sum.Results = append(sum.Results, TaskResult{ID: t.ID, Kind: t.Kind, Entity: t.Entity, Output: t.Output, Status: t.Status})
		}
	}

	status := state.RunCompleted
	if firstErr != nil {
		status = state.RunFailed
	}
	r.endRun(sum, start, status)
	r.emitter.emit(Event{Type: EventRunDone, RunID: runID, Error: firstErr, Duration: sum.Duration})
	return sum, firstErr
}

// execute runs one task with retries.
func (r *Runner) execute(ctx context.Context, runID string, t *models.Task, hash string) completion {
	start := time.Now()
	var err error
	attempt := 0
	for attempt < r.opts.retries+1 {
		attempt++
		if attempt == 1 {
			r.emitter.emit(Event{Type: EventTaskStarted, RunID: runID, TaskID: t.ID, Kind: t.Kind, Entity: t.Entity, Attempt: attempt})
		}

		err = r.executor.Run(ctx, executor.Job{Task: t, Attempt: attempt})
		if err == nil && t.Kind != models.TaskKindCommand {
			if _, statErr := os.Stat(t.Output); statErr != nil {
				err = fmt.Errorf("output %s not produced: %w", t.Output, statErr)
			}
		}
		if err == nil || ctx.Err() != nil {
			break
		}
		if attempt > r.opts.retries {
			break
		}

		r.logger.Log("[runner] task %s attempt %d failed: %v", t.ID, attempt, err)
		r.emitter.emit(Event{Type: EventTaskRetry, RunID: runID, TaskID: t.ID, Kind: t.Kind, Entity: t.Entity, Attempt: attempt, Error: err})
		select {
		case <-ctx.Done():
		case <-time.After(r.opts.backoff * time.Duration(attempt)):
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return completion{task: t, hash: hash, err: err, attempts: attempt, started: start, duration: time.Since(start)}
}

func (r *Runner) hashTask(t *models.Task) string {
	if r.opts.store == nil {
		return ""
	}
	hash, err := state.TaskHash(t)
	if err != nil {
		r.logger.Log("[runner] task %s: not cacheable: %v", t.ID, err)
		return ""
	}
	return hash
}

func (r *Runner) cacheHit(runID string, t *models.Task, hash string) bool {
	if !r.opts.cache || hash == "" || (t.Kind == models.TaskKindCommand && t.Output == "") {
		return false
	}
	tr, err := r.opts.store.CachedResult(hash)
	if err != nil {
		r.logger.Log("[runner] cache lookup for %s failed: %v", t.ID, err)
		return false
	}
	if tr == nil {
		return false
	}
	r.logger.Log("[runner] run %s: %s cached from run %s", runID, t.ID, tr.RunID)
	return true
}

// WouldCache reports whether t would be served from the cache if it ran
// now. A task whose inputs do not exist yet reports false.
func (r *Runner) WouldCache(t *models.Task) bool {
	return r.cacheHit("dry-run", t, r.hashTask(t))
}

func (r *Runner) beginRun(runID string) error {
	if r.opts.store == nil {
		return nil
	}
	if recovered, err := r.opts.store.RecoverInterruptedRuns(); err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	} else if len(recovered) > 0 {
		log.Printf("[pipeline] marked %d interrupted run(s) from a previous invocation", len(recovered))
	}
	return r.opts.store.CreateRun(&state.Run{
		ID:        runID,
		InputDir:  r.opts.inputDir,
		Executor:  r.executor.Name(),
		StartedAt: time.Now(),
		Status:    state.RunRunning,
	})
}

func (r *Runner) endRun(sum *Summary, start time.Time, status state.RunStatus) {
	sum.Status = status
	sum.Duration = time.Since(start)
	if r.opts.store == nil {
		return
	}
	if err := r.opts.store.FinishRun(sum.RunID, status); err != nil {
		log.Printf("[pipeline] record end of run %s: %v", sum.RunID, err)
	}
}

func (r *Runner) recordStart(runID string, t *models.Task, hash string) {
	if r.opts.store == nil || hash == "" {
		return
	}
	err := r.opts.store.RecordTaskRun(&state.TaskRun{
		Hash:      hash,
		RunID:     runID,
		TaskID:    t.ID,
		Kind:      string(t.Kind),
		Entity:    t.Entity,
		Output:    t.Output,
		Status:    state.TaskRunRunning,
		StartedAt: time.Now(),
	})
	if err != nil {
		r.logger.Log("[runner] record start of %s: %v", t.ID, err)
	}
}

func (r *Runner) recordFinish(runID string, t *models.Task, hash string, started time.Time) {
	if r.opts.store == nil || hash == "" {
		return
	}
	tr := &state.TaskRun{
		Hash:        hash,
		RunID:       runID,
		TaskID:      t.ID,
		Kind:        string(t.Kind),
		Entity:      t.Entity,
		Output:      t.Output,
		Status:      state.TaskRunDone,
		StartedAt:   started,
		CompletedAt: t.CompletedAt,
	}
	if t.Status == models.TaskStatusFailed {
		tr.Status = state.TaskRunFailed
		tr.Error = t.Error
	} else if d, err := state.FileDigest(t.Output); err == nil {
		tr.OutputDigest = d
	}
	if err := r.opts.store.RecordTaskRun(tr); err != nil {
		r.logger.Log("[runner] record result of %s: %v", t.ID, err)
	}
}
