// Package access leases exclusive, tick-scoped access to the host store.
//
// The host only hands out its mutable store for the duration of one tick. A
// Cell holds that store between Enter and Exit so that code deep in a call
// stack (tree edits issued by view callbacks, deferred tasks) can reach it
// without threading it through every signature.
//
// The lease is exclusive and not reentrant. Access outside an Enter/Exit
// bracket is an invariant violation, and so is a second Enter while a lease is
// live. Prefer Scope, which cannot leak the lease on early return or panic:
//
//	err := cell.Scope(world, func() error {
//	    return cell.With(func(s host.Store) error {
//	        s.Spawn()
//	        return nil
//	    })
//	})
package access

import (
	"github.com/go-drift/hostbridge/internal/goid"
	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/host"
)

// Cell stores the currently leased host store.
//
// Cell is NOT safe for concurrent use. It is owned by the goroutine that
// drives the host tick; With from any other goroutine fails.
type Cell struct {
	store host.Store
	owner uint64
	guard *Guard
}

// Guard represents a live lease. Exit ends it.
type Guard struct {
	cell *Cell
}

// NewCell creates a cell with no lease.
func NewCell() *Cell {
	return &Cell{}
}

// Enter leases s until the returned guard exits. It fails with ErrAccessHeld
// when a lease is already live; the existing lease is left untouched.
func (c *Cell) Enter(s host.Store) (*Guard, error) {
	if c.guard != nil {
		return nil, &errors.BridgeError{
			Op:   "access.Enter",
			Kind: errors.KindInvariant,
			Err:  errors.ErrAccessHeld,
		}
	}
	if s == nil {
		return nil, &errors.BridgeError{
			Op:   "access.Enter",
			Kind: errors.KindAccess,
			Err:  errors.New("nil host store"),
		}
	}
	c.store = s
	c.owner = goid.Current()
	c.guard = &Guard{cell: c}
	return c.guard, nil
}

// Exit releases the lease. Calling Exit more than once is a no-op.
func (g *Guard) Exit() {
	if g == nil || g.cell == nil {
		return
	}
	c := g.cell
	g.cell = nil
	if c.guard != g {
		return
	}
	c.guard = nil
	c.store = nil
	c.owner = 0
}

// Scope leases s for the duration of fn. The lease is released when fn
// returns or panics.
func (c *Cell) Scope(s host.Store, fn func() error) error {
	g, err := c.Enter(s)
	if err != nil {
		return err
	}
	defer g.Exit()
	return fn()
}

// Held reports whether a lease is live.
func (c *Cell) Held() bool {
	return c.guard != nil
}

// With calls fn with the leased store. It returns ErrAccessNotAvailable when
// no lease is live and ErrWrongGoroutine when called from a goroutine other
// than the one that entered.
func (c *Cell) With(fn func(host.Store) error) error {
	s, err := c.current("access.With")
	if err != nil {
		return err
	}
	return fn(s)
}

// Must is With for callers that treat missing access as fatal. It panics
// with the invariant error instead of returning it.
func (c *Cell) Must(fn func(host.Store)) {
	s, err := c.current("access.Must")
	if err != nil {
		panic(err)
	}
	fn(s)
}

func (c *Cell) current(op string) (host.Store, error) {
	if c.guard == nil {
		return nil, errors.Invariant(op, 0, errors.ErrAccessNotAvailable)
	}
	if id := goid.Current(); id != c.owner {
		return nil, errors.Invariant(op, 0, errors.ErrWrongGoroutine)
	}
	return c.store, nil
}
