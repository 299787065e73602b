package executor

import (
	"fmt"

	"github.com/go-drift/hostbridge/pkg/errors"
)

// ErrPending is returned by Future.Result while the work is still running.
var ErrPending = errors.New("executor: future not ready")

// Future is the result of work running on its own goroutine. As a Task it
// reports Ready once the work has finished.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async starts fn on a new goroutine.
func Async[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				f.err = &asyncPanic{value: r}
			}
			close(f.done)
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns a future that is already complete.
func Resolved[T any](value T, err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: value, err: err}
	close(f.done)
	return f
}

// Poll reports Ready once the work has finished. It never blocks.
func (f *Future[T]) Poll() Status {
	select {
	case <-f.done:
		return Ready
	default:
		return Pending
	}
}

// Done returns a channel that is closed when the work finishes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome, or ErrPending while the work is still running.
func (f *Future[T]) Result() (T, error) {
	if f.Poll() == Pending {
		var zero T
		return zero, ErrPending
	}
	return f.value, f.err
}

type asyncPanic struct {
	value any
}

func (p *asyncPanic) Error() string {
	return "executor: async work panicked: " + fmt.Sprint(p.value)
}

// Then returns a task that waits for f and then calls fn with its outcome on
// the flushing goroutine.
func Then[T any](f *Future[T], fn func(T, error)) Task {
	return TaskFunc(func() Status {
		if f.Poll() == Pending {
			return Pending
		}
		fn(f.value, f.err)
		return Ready
	})
}

// Steps returns a task that runs one step per poll and reports Ready after
// the last step. Each step therefore lands in a separate Flush.
func Steps(steps ...func()) Task {
	next := 0
	return TaskFunc(func() Status {
		if next < len(steps) {
			steps[next]()
			next++
		}
		if next >= len(steps) {
			return Ready
		}
		return Pending
	})
}
