// Package executor runs cooperative tasks once per host tick.
//
// Tasks are polled, never awaited: a task that is not done reports Pending
// and is polled again on the next Flush. There is no waker. A pending task
// makes progress only when the host ticks.
//
// Each Flush works on a snapshot of the queues taken when it starts, so a
// task that keeps resubmitting itself cannot keep a single Flush running.
package executor

import (
	"log/slog"
	"sync"

	"github.com/go-drift/hostbridge/internal/goid"
	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/errors"
)

// Status is the outcome of polling a task once.
type Status int

const (
	Pending Status = iota
	Ready
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "pending"
}

// Task is a unit of deferred work.
type Task interface {
	Poll() Status
}

// TaskFunc adapts a function to Task.
type TaskFunc func() Status

// Poll calls f.
func (f TaskFunc) Poll() Status {
	return f()
}

// FlushStats summarizes one Flush.
type FlushStats struct {
	Polled    int `json:"polled"`
	Completed int `json:"completed"`
	Requeued  int `json:"requeued"`
	Panicked  int `json:"panicked"`
}

// Observer is notified when tasks are queued.
type Observer interface {
	TaskSpawned(local bool)
}

// Executor holds two FIFO queues. The shared queue accepts tasks from any
// goroutine. The local queue accepts tasks only from the goroutine that
// created the executor, which is also the only goroutine allowed to Flush.
type Executor struct {
	owner    uint64
	logger   *slog.Logger
	observer Observer

	mu     sync.Mutex
	shared []Task
	local  []Task
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers an observer for task submission.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		e.observer = o
	}
}

// New creates an executor owned by the calling goroutine.
func New(opts ...Option) *Executor {
	e := &Executor{
		owner:  goid.Current(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Spawn queues t on the shared queue. It is safe to call from any
// goroutine, including from inside a running task. Nil tasks are ignored.
func (e *Executor) Spawn(t Task) {
	if t == nil {
		return
	}
	e.mu.Lock()
	e.shared = append(e.shared, t)
	e.mu.Unlock()
	if e.observer != nil {
		e.observer.TaskSpawned(false)
	}
}

// SpawnLocal queues t on the local queue. Calling it from a goroutine other
// than the owner panics.
func (e *Executor) SpawnLocal(t Task) {
	if t == nil {
		return
	}
	e.checkOwner("executor.SpawnLocal")
	e.mu.Lock()
	e.local = append(e.local, t)
	e.mu.Unlock()
	if e.observer != nil {
		e.observer.TaskSpawned(true)
	}
}

// Flush polls every task that was queued when the call started, the shared
// queue first. Tasks still pending go to the back of their live queue and
// wait for the next Flush; tasks queued during this Flush also wait. A task
// that panics is reported through the error handler and dropped.
func (e *Executor) Flush() FlushStats {
	e.checkOwner("executor.Flush")
	var stats FlushStats
	e.drain(&e.shared, &stats)
	e.drain(&e.local, &stats)
	if stats.Polled > 0 {
		e.logger.Debug("executor flush",
			"polled", stats.Polled,
			"completed", stats.Completed,
			"requeued", stats.Requeued,
			"panicked", stats.Panicked,
		)
	}
	return stats
}

func (e *Executor) drain(queue *[]Task, stats *FlushStats) {
	e.mu.Lock()
	batch := *queue
	*queue = nil
	e.mu.Unlock()

	for _, t := range batch {
		stats.Polled++
		status, panicked := e.poll(t)
		switch {
		case panicked:
			stats.Panicked++
		case status == Ready:
			stats.Completed++
		default:
			stats.Requeued++
			e.mu.Lock()
			*queue = append(*queue, t)
			e.mu.Unlock()
		}
	}
}

func (e *Executor) poll(t Task) (status Status, panicked bool) {
	defer errors.Recover("executor.Flush", func(any) {
		panicked = true
	})
	return t.Poll(), false
}

// Len returns the number of queued tasks.
func (e *Executor) Len() (shared, local int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.shared), len(e.local)
}

func (e *Executor) checkOwner(op string) {
	if goid.Current() != e.owner {
		errors.Fatal(op, 0, errors.ErrWrongGoroutine)
	}
}
