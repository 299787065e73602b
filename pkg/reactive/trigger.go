package reactive

import (
	"maps"
	"slices"
	"sync"
)

// Trigger is a payload-free change notification. Listeners run in
// subscription order on the goroutine that calls Notify.
type Trigger struct {
	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
	count     uint64
}

// NewTrigger creates a trigger with no listeners.
func NewTrigger() *Trigger {
	return &Trigger{listeners: make(map[int]func())}
}

// Subscribe adds fn and returns a function that removes it.
func (t *Trigger) Subscribe(fn func()) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Notify runs every listener once.
func (t *Trigger) Notify() {
	t.mu.Lock()
	t.count++
	ids := slices.Sorted(maps.Keys(t.listeners))
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.listeners[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Count returns how many times Notify has been called.
func (t *Trigger) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Listeners returns the number of subscribed listeners.
func (t *Trigger) Listeners() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}
