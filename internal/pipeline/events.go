package pipeline

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/digestflow/pkg/models"
)

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventTaskStarted indicates a task was handed to the executor.
	EventTaskStarted EventType = "task_started"
	// EventTaskCached indicates a task was skipped because its result is cached.
	EventTaskCached EventType = "task_cached"
	// EventTaskDone indicates a task completed successfully.
	EventTaskDone EventType = "task_done"
	// EventTaskRetry indicates a failed task is about to be retried.
	EventTaskRetry EventType = "task_retry"
	// EventTaskFailed indicates a task failed after all attempts.
	EventTaskFailed EventType = "task_failed"
	// EventRunDone indicates the run finished, successfully or not.
	EventRunDone EventType = "run_done"
)

// Event reports pipeline progress to the TUI and summary output.
type Event struct {
	Type      EventType
	RunID     string
	TaskID    string
	Kind      models.TaskKind
	Entity    string
	Attempt   int
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

// emitter delivers events on a buffered channel, giving a slow reader a
// short grace period before dropping.
type emitter struct {
	events  chan Event
	dropped atomic.Uint64
}

func newEmitter(size int) *emitter {
	return &emitter{events: make(chan Event, size)}
}

func (e *emitter) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	select {
	case e.events <- ev:
		return
	default:
	}

	select {
	case e.events <- ev:
	case <-time.After(100 * time.Millisecond):
		if n := e.dropped.Add(1); n%10 == 1 {
			log.Printf("[pipeline] WARNING: event channel full, dropped %d events (last: %s %s)", n, ev.Type, ev.TaskID)
		}
	}
}

// Consume passes events to handle until run_done arrives. Once stop is
// closed it handles whatever is still buffered and returns, so a run that
// ended without run_done does not leave the consumer waiting.
func Consume(events <-chan Event, stop <-chan struct{}, handle func(Event)) {
	for {
		select {
		case ev := <-events:
			handle(ev)
			if ev.Type == EventRunDone {
				return
			}
		case <-stop:
			for {
				select {
				case ev := <-events:
					handle(ev)
					if ev.Type == EventRunDone {
						return
					}
				default:
					return
				}
			}
		}
	}
}
