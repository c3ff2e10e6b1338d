// Package watch re-runs the pipeline when FASTA inputs change.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// StopSignal is the file name that ends a watch loop when created in the
	// signals directory.
	StopSignal = "stop"
	// DefaultDebounce is how long the watcher waits for further changes
	// before re-running.
	DefaultDebounce = 500 * time.Millisecond
)

// SignalsDir returns the signals directory under a project's state dir.
func SignalsDir(stateDir string) string {
	return filepath.Join(stateDir, "signals")
}

// SendStop asks a watch loop using stateDir to finish.
func SendStop(stateDir string) error {
	dir := SignalsDir(stateDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, StopSignal), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// RunFunc runs the pipeline once.
type RunFunc func(ctx context.Context) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a re-run.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogf sets the progress logger. Defaults to log.Printf.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(w *Watcher) { w.logf = logf }
}

// Watcher watches an input directory and a signals directory.
type Watcher struct {
	inputDir   string
	signalsDir string
	debounce   time.Duration
	run        RunFunc
	logf       func(format string, args ...any)

	watcher *fsnotify.Watcher

	mu         sync.RWMutex
	stopSignal bool
	runs       int
}

// New creates a Watcher over inputDir. stateDir holds the signals directory.
func New(inputDir, stateDir string, run RunFunc, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		inputDir:   filepath.Clean(inputDir),
		signalsDir: SignalsDir(stateDir),
		debounce:   DefaultDebounce,
		run:        run,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := os.MkdirAll(w.signalsDir, 0755); err != nil {
		return nil, fmt.Errorf("create signals dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	for _, dir := range []string{w.inputDir, w.signalsDir} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.watcher = watcher
	return w, nil
}

// Watch runs the pipeline once, then again after every burst of changes to
// *.fasta files, until ctx ends or a stop signal arrives. Failed runs are
// logged and do not end the loop.
func (w *Watcher) Watch(ctx context.Context) error {
	w.clearSignals()
	w.runOnce(ctx)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.isStop(event) {
				w.logf("[watch] stop signal received")
				return nil
			}
			if !w.isInput(event) {
				continue
			}
			w.logf("[watch] %s %s", strings.ToLower(event.Op.String()), filepath.Base(event.Name))
			fire = time.After(w.debounce)

		case <-fire:
			fire = nil
			if w.ShouldStop() {
				return nil
			}
			w.runOnce(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logf("[watch] watcher error: %v", err)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	w.mu.Lock()
	w.runs++
	n := w.runs
	w.mu.Unlock()

	if err := w.run(ctx); err != nil {
		w.logf("[watch] run %d failed: %v", n, err)
		return
	}
	w.logf("[watch] run %d complete, watching %s", n, w.inputDir)
}

func (w *Watcher) isInput(event fsnotify.Event) bool {
	if filepath.Dir(event.Name) != w.inputDir || filepath.Ext(event.Name) != ".fasta" {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0
}

func (w *Watcher) isStop(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != StopSignal || filepath.Dir(event.Name) != w.signalsDir {
		return false
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	// Events queued before clearSignals refer to a file that is gone.
	if _, err := os.Stat(event.Name); err != nil {
		return false
	}
	w.mu.Lock()
	w.stopSignal = true
	w.mu.Unlock()
	return true
}

// ShouldStop reports whether a stop signal has been received.
func (w *Watcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(w.signalsDir, StopSignal)); err == nil {
		w.mu.Lock()
		w.stopSignal = true
		w.mu.Unlock()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopSignal
}

// Runs returns how many times the pipeline has been run.
func (w *Watcher) Runs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.runs
}

// clearSignals removes a stop file left by a previous loop.
func (w *Watcher) clearSignals() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopSignal = false
	os.Remove(filepath.Join(w.signalsDir, StopSignal))
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
