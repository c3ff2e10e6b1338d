package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/digestflow/pkg/models"
)

func job(id string) Job {
	return Job{Task: &models.Task{ID: id, Kind: models.TaskKindDigest}, Attempt: 1}
}

func noopStep(ctx context.Context, t *models.Task) error { return nil }

func TestNew(t *testing.T) {
	argv := func(*models.Task) ([]string, error) { return []string{"true"}, nil }

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"empty name is default", Config{Step: noopStep}, NameDefault, nil},
		{"default", Config{Name: "default", Step: noopStep}, NameDefault, nil},
		{"threads", Config{Name: "Threads", Step: noopStep, Workers: 3}, NameThreads, nil},
		{"process", Config{Name: "process", Argv: argv, Workers: 2}, NameProcess, nil},
		{"batch is not available", Config{Name: "batch", Step: noopStep}, "", ErrUnknownExecutor},
		{"unknown", Config{Name: "slurm", Step: noopStep}, "", ErrUnknownExecutor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}
			defer ex.Close()
			if ex.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", ex.Name(), tt.wantName)
			}
		})
	}
}

func TestNew_MissingFunctions(t *testing.T) {
	for _, name := range Names() {
		if _, err := New(Config{Name: name}); err == nil {
			t.Errorf("New(%s) without step or argv should fail", name)
		}
	}
}

func TestSlots(t *testing.T) {
	if got := NewInline(noopStep).Slots(); got != 1 {
		t.Errorf("inline Slots() = %d, want 1", got)
	}
	if got := NewThreads(noopStep, 4).Slots(); got != 4 {
		t.Errorf("threads Slots() = %d, want 4", got)
	}
	if got := NewThreads(noopStep, 0).Slots(); got != 1 {
		t.Errorf("threads Slots() with 0 workers = %d, want 1", got)
	}
	ex, err := New(Config{Name: NameThreads, Step: noopStep})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer ex.Close()
	if ex.Slots() < 1 {
		t.Errorf("default worker count should be at least 1, got %d", ex.Slots())
	}
}

func TestInline_RunsStepAndHonorsContext(t *testing.T) {
	var ran []string
	ex := NewInline(func(ctx context.Context, t *models.Task) error {
		ran = append(ran, t.ID)
		if t.ID == "bad" {
			return errors.New("step failed")
		}
		return nil
	})

	if err := ex.Run(context.Background(), job("digest:KLF4")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := ex.Run(context.Background(), job("bad")); err == nil {
		t.Error("expected step error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ex.Run(ctx, job("never")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !reflect.DeepEqual(ran, []string{"digest:KLF4", "bad"}) {
		t.Errorf("ran = %v", ran)
	}
}

func TestThreads_BoundsConcurrency(t *testing.T) {
	const workers = 3
	var inFlight, peak, done int32
	ex := NewThreads(func(ctx context.Context, t *models.Task) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&done, 1)
		return nil
	}, workers)
	defer ex.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := ex.Run(context.Background(), job(fmt.Sprintf("digest:P%d", i))); err != nil {
				t.Errorf("Run failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if done != 10 {
		t.Errorf("completed %d jobs, want 10", done)
	}
	if peak > workers {
		t.Errorf("peak concurrency %d exceeds %d workers", peak, workers)
	}
}

func TestThreads_RecoversPanics(t *testing.T) {
	ex := NewThreads(func(ctx context.Context, t *models.Task) error {
		panic("bad residue")
	}, 1)
	defer ex.Close()

	err := ex.Run(context.Background(), job("count:MYC"))
	if err == nil {
		t.Fatal("expected error from panicking step")
	}

	// The worker survives the panic.
	err = ex.Run(context.Background(), job("count:SOX2"))
	if err == nil {
		t.Fatal("expected second error")
	}
}

func TestThreads_Close(t *testing.T) {
	ex := NewThreads(noopStep, 2)
	if err := ex.Run(context.Background(), job("a")); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := ex.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := ex.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := ex.Run(context.Background(), job("b")); !errors.Is(err, errClosed) {
		t.Errorf("Run after Close = %v, want errClosed", err)
	}

	unused := NewThreads(noopStep, 2)
	if err := unused.Close(); err != nil {
		t.Errorf("Close of unused pool failed: %v", err)
	}
}

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{workDir, name}, args...))
	return nil, f.err
}

func (f *fakeRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	return f.Run(ctx, workDir, "sh", "-c", command)
}

func TestProcess_Run(t *testing.T) {
	runner := &fakeRunner{}
	argv := func(tk *models.Task) ([]string, error) {
		if tk.ID == "broken" {
			return nil, errors.New("no step command")
		}
		return []string{"/usr/bin/digestflow", "digest", "in/" + tk.Entity + ".fasta", "out.txt"}, nil
	}
	ex := NewProcess(runner, argv, 2, "/work")

	tk := job("digest:KLF4")
	tk.Task.Entity = "KLF4"
	if err := ex.Run(context.Background(), tk); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := [][]string{{"/work", "/usr/bin/digestflow", "digest", "in/KLF4.fasta", "out.txt"}}
	if !reflect.DeepEqual(runner.calls, want) {
		t.Errorf("calls = %v, want %v", runner.calls, want)
	}

	if err := ex.Run(context.Background(), job("broken")); err == nil {
		t.Error("expected argv error")
	}

	runner.err = errors.New("exit status 1")
	if err := ex.Run(context.Background(), job("digest:MYC")); err == nil {
		t.Error("expected runner error to propagate")
	}
}
