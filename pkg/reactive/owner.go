// Package reactive provides the two pieces of a reactive graph the bridge
// depends on: an Owner that scopes cleanup, and a Trigger that wakes
// whatever subscribed to it.
package reactive

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Owner is a disposal scope. Cleanups registered on it run in reverse order
// when it is disposed, after every child owner has been disposed.
type Owner struct {
	id uuid.UUID

	mu       sync.Mutex
	parent   *Owner
	children []*Owner
	cleanups []cleanup
	nextID   uint64
	disposed bool
}

type cleanup struct {
	id uint64
	fn func()
}

// NewOwner creates a root owner.
func NewOwner() *Owner {
	return &Owner{id: uuid.New()}
}

// ID returns the owner's unique id.
func (o *Owner) ID() uuid.UUID {
	return o.id
}

// NewChild creates an owner that is disposed together with o. A child of a
// disposed owner is returned already disposed.
func (o *Owner) NewChild() *Owner {
	child := &Owner{id: uuid.New(), parent: o}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		child.disposed = true
		return child
	}
	o.children = append(o.children, child)
	return child
}

// OnCleanup registers fn to run on disposal and returns a function that
// unregisters it. Registering on a disposed owner runs fn immediately.
func (o *Owner) OnCleanup(fn func()) func() {
	if fn == nil {
		return func() {}
	}

	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		fn()
		return func() {}
	}
	o.nextID++
	id := o.nextID
	o.cleanups = append(o.cleanups, cleanup{id: id, fn: fn})
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.cleanups = slices.DeleteFunc(o.cleanups, func(c cleanup) bool { return c.id == id })
	}
}

// Cleanups returns the number of cleanups still registered.
func (o *Owner) Cleanups() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.cleanups)
}

// Dispose disposes every child, then runs the cleanups in LIFO order. It is
// safe to call more than once.
func (o *Owner) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	o.disposed = true
	children := o.children
	cleanups := o.cleanups
	o.children = nil
	o.cleanups = nil
	parent := o.parent
	o.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i].fn()
	}
	if parent != nil {
		parent.forget(o)
	}
}

func (o *Owner) forget(child *Owner) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// Disposed reports whether Dispose has run.
func (o *Owner) Disposed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disposed
}
