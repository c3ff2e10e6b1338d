package rules

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/digestflow/internal/exec"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/fasta"
	"github.com/ShayCichocki/digestflow/internal/graph"
	"github.com/ShayCichocki/digestflow/internal/pipeline"
	"github.com/ShayCichocki/digestflow/internal/state"
	"github.com/ShayCichocki/digestflow/pkg/models"
)

// ExecutorName is recorded as the executor of make runs.
const ExecutorName = "make"

// Option configures a Maker.
type Option func(*makerOptions)

type makerOptions struct {
	store   state.StateStore
	cache   bool
	workDir string
	runner  exec.CommandRunner
	step    executor.StepFunc
	logf    func(format string, args ...any)
}

// WithStore memoizes rule results in store.
func WithStore(s state.StateStore) Option {
	return func(o *makerOptions) { o.store = s }
}

// WithCache toggles reuse of memoized results.
func WithCache(enabled bool) Option {
	return func(o *makerOptions) { o.cache = enabled }
}

// WithWorkDir resolves relative targets and runs commands in dir.
func WithWorkDir(dir string) Option {
	return func(o *makerOptions) { o.workDir = dir }
}

// WithCommandRunner sets the runner used for shell commands.
func WithCommandRunner(r exec.CommandRunner) Option {
	return func(o *makerOptions) { o.runner = r }
}

// WithStep replaces the in-process step implementation.
func WithStep(step executor.StepFunc) Option {
	return func(o *makerOptions) { o.step = step }
}

// WithLogf sets the progress logger. Defaults to log.Printf.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(o *makerOptions) { o.logf = logf }
}

// Maker makes targets from a rule set.
type Maker struct {
	rules *Set
	opts  makerOptions
}

// NewMaker creates a Maker over rules.
func NewMaker(rules *Set, opts ...Option) *Maker {
	o := makerOptions{cache: true, logf: log.Printf}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workDir == "" {
		o.workDir = "."
	}
	if o.runner == nil {
		o.runner = exec.NewRunner()
	}
	if o.step == nil {
		o.step = pipeline.NewSteps(o.runner, o.workDir).Run
	}
	return &Maker{rules: rules, opts: o}
}

// Result lists what a Make call did.
type Result struct {
	RunID    string   `json:"run_id"`
	Target   string   `json:"target"`
	Output   string   `json:"output,omitempty"`
	Executed []string `json:"executed"`
	Cached   []string `json:"cached"`
}

// Make recursively makes target's deps and then target itself. Each target
// is made at most once per call. An empty target makes the default target.
func (m *Maker) Make(ctx context.Context, target string) (*Result, error) {
	if target == "" {
		target = m.rules.DefaultTarget()
	}
	res := &Result{RunID: uuid.New().String()[:8], Target: target}
	if err := m.beginRun(res.RunID); err != nil {
		return res, err
	}

	b := &build{
		maker:  m,
		res:    res,
		made:   make(map[string]string),
		active: make(map[string]bool),
	}
	out, err := b.make(ctx, target)
	res.Output = out

	status := state.RunCompleted
	if err != nil {
		status = state.RunFailed
	}
	if m.opts.store != nil {
		if ferr := m.opts.store.FinishRun(res.RunID, status); ferr != nil {
			log.Printf("[rules] record end of run %s: %v", res.RunID, ferr)
		}
	}
	return res, err
}

func (m *Maker) beginRun(runID string) error {
	if m.opts.store == nil {
		return nil
	}
	return m.opts.store.CreateRun(&state.Run{
		ID:        runID,
		InputDir:  m.opts.workDir,
		Executor:  ExecutorName,
		StartedAt: time.Now(),
		Status:    state.RunRunning,
	})
}

func (m *Maker) resolve(target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(m.opts.workDir, target)
}

// build holds the state of one Make call.
type build struct {
	maker  *Maker
	res    *Result
	made   map[string]string
	active map[string]bool
	stack  []string
}

// make returns the path of the made target, or "" when the target names no
// file (a phony rule or a command that writes nothing).
func (b *build) make(ctx context.Context, target string) (string, error) {
	if out, ok := b.made[target]; ok {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if b.active[target] {
		return "", fmt.Errorf("%w: %s -> %s", graph.ErrCycleDetected, strings.Join(b.stack, " -> "), target)
	}
	m := b.maker

	rule, ok := m.rules.Match(target)
	if !ok {
		path := m.resolve(target)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoRule, target)
		}
		b.made[target] = path
		return path, nil
	}

	b.active[target] = true
	b.stack = append(b.stack, target)
	defer func() {
		delete(b.active, target)
		b.stack = b.stack[:len(b.stack)-1]
	}()

	inputs := make([]string, 0, len(rule.Deps))
	for _, dep := range rule.Deps {
		out, err := b.make(ctx, dep)
		if err != nil {
			return "", fmt.Errorf("make %s: %w", target, err)
		}
		if out != "" {
			inputs = append(inputs, out)
		}
	}

	if rule.Phony() {
		b.made[target] = ""
		return "", nil
	}

	kind := rule.Step
	if kind == "" {
		kind = models.TaskKindCommand
	}
	t := &models.Task{
		ID:        target,
		Kind:      kind,
		Entity:    fasta.ProteinID(target),
		Inputs:    inputs,
		Output:    m.resolve(target),
		Params:    rule.Params,
		Command:   rule.Command,
		Version:   pipeline.StepVersion(kind),
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}
	if err := b.run(ctx, t); err != nil {
		return "", err
	}

	out := t.Output
	if _, err := os.Stat(out); err != nil {
		out = ""
	}
	b.made[target] = out
	return out, nil
}

// run executes t unless a memoized result for it can be reused.
func (b *build) run(ctx context.Context, t *models.Task) error {
	m := b.maker
	hash := ""
	if m.opts.store != nil {
		if h, err := state.TaskHash(t); err == nil {
			hash = h
		}
	}

	if m.opts.cache && hash != "" {
		if tr, err := m.opts.store.CachedResult(hash); err == nil && tr != nil {
			t.MarkDone(true)
			b.res.Cached = append(b.res.Cached, t.ID)
			return nil
		}
	}

	m.opts.logf("[rules] making %s", t.ID)
	started := time.Now()
	b.record(t, hash, state.TaskRunRunning, started)

	var err error
	if t.Kind == models.TaskKindCommand {
		_, err = m.opts.runner.RunShell(ctx, m.opts.workDir, t.Command)
	} else {
		err = m.opts.step(ctx, t)
		if err == nil {
			if _, statErr := os.Stat(t.Output); statErr != nil {
				err = fmt.Errorf("output %s not produced: %w", t.Output, statErr)
			}
		}
	}
	if err != nil {
		t.MarkFailed(err)
		b.record(t, hash, state.TaskRunFailed, started)
		return fmt.Errorf("make %s: %w", t.ID, err)
	}

	t.MarkDone(false)
	b.record(t, hash, state.TaskRunDone, started)
	b.res.Executed = append(b.res.Executed, t.ID)
	return nil
}

func (b *build) record(t *models.Task, hash string, status state.TaskRunStatus, started time.Time) {
	store := b.maker.opts.store
	if store == nil || hash == "" {
		return
	}
	tr := &state.TaskRun{
		Hash:        hash,
		RunID:       b.res.RunID,
		TaskID:      t.ID,
		Kind:        string(t.Kind),
		Entity:      t.Entity,
		Output:      t.Output,
		Status:      status,
		Error:       t.Error,
		StartedAt:   started,
		CompletedAt: t.CompletedAt,
	}
	if status == state.TaskRunDone {
		if d, err := state.FileDigest(t.Output); err == nil {
			tr.OutputDigest = d
		}
	}
	if err := store.RecordTaskRun(tr); err != nil {
		log.Printf("[rules] record %s: %v", t.ID, err)
	}
}
