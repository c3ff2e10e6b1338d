package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietLogf(string, ...any) {}

type fixture struct {
	inputDir string
	stateDir string
	runs     chan struct{}
	w        *Watcher
}

func setupWatcher(t *testing.T, run RunFunc) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		inputDir: filepath.Join(root, "fasta"),
		stateDir: filepath.Join(root, ".digestflow"),
		runs:     make(chan struct{}, 16),
	}
	if err := os.MkdirAll(f.inputDir, 0755); err != nil {
		t.Fatal(err)
	}
	if run == nil {
		run = func(ctx context.Context) error {
			f.runs <- struct{}{}
			return nil
		}
	}
	w, err := New(f.inputDir, f.stateDir, run, WithDebounce(20*time.Millisecond), WithLogf(quietLogf))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	f.w = w
	return f
}

func (f *fixture) waitRun(t *testing.T) {
	t.Helper()
	select {
	case <-f.runs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a run")
	}
}

func startWatch(ctx context.Context, w *Watcher) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("watch loop did not finish")
		return nil
	}
}

func TestWatch_RerunsOnFastaChange(t *testing.T) {
	f := setupWatcher(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startWatch(ctx, f.w)

	f.waitRun(t)

	if err := os.WriteFile(filepath.Join(f.inputDir, "MYC.fasta"), []byte(">MYC\nMPLNVSFTNR\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f.waitRun(t)

	if got := f.w.Runs(); got != 2 {
		t.Errorf("Runs() = %d, want 2", got)
	}

	cancel()
	if err := waitDone(t, done); !errors.Is(err, context.Canceled) {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	f := setupWatcher(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startWatch(ctx, f.w)
	f.waitRun(t)

	if err := os.WriteFile(filepath.Join(f.inputDir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-f.runs:
		t.Error("unexpected run for a non-fasta file")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	waitDone(t, done)
}

func TestWatch_StopSignal(t *testing.T) {
	f := setupWatcher(t, nil)
	done := startWatch(context.Background(), f.w)
	f.waitRun(t)

	if err := SendStop(f.stateDir); err != nil {
		t.Fatalf("SendStop failed: %v", err)
	}
	if err := waitDone(t, done); err != nil {
		t.Errorf("Watch returned %v, want nil", err)
	}
	if !f.w.ShouldStop() {
		t.Error("ShouldStop() = false after stop signal")
	}
}

func TestWatch_StaleStopSignalCleared(t *testing.T) {
	f := setupWatcher(t, nil)
	if err := SendStop(f.stateDir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startWatch(ctx, f.w)
	f.waitRun(t)

	if _, err := os.Stat(filepath.Join(SignalsDir(f.stateDir), StopSignal)); !os.IsNotExist(err) {
		t.Errorf("stale stop file not removed: %v", err)
	}
	cancel()
	waitDone(t, done)
}

func TestWatch_FailedRunKeepsWatching(t *testing.T) {
	calls := make(chan struct{}, 16)
	f := setupWatcher(t, func(ctx context.Context) error {
		calls <- struct{}{}
		return errors.New("no fasta inputs")
	})
	f.runs = calls

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := startWatch(ctx, f.w)
	f.waitRun(t)

	if err := os.WriteFile(filepath.Join(f.inputDir, "KLF4.fasta"), []byte(">KLF4\nMRQPPGESDMAVSDALLPSFSTFASGPAGR\n"), 0644); err != nil {
		t.Fatal(err)
	}
	f.waitRun(t)

	cancel()
	waitDone(t, done)
}

func TestNew_MissingInputDir(t *testing.T) {
	root := t.TempDir()
	if _, err := New(filepath.Join(root, "missing"), root, func(context.Context) error { return nil }); err == nil {
		t.Error("expected error for a missing input directory")
	}
}
