// Package view is the closed set of view shapes the bridge can mount:
// Element, Text, Fragment and Dynamic.
//
// A View is a description. Build turns it into a State that owns host nodes
// through the tree mutator. States are mounted under a parent, optionally
// before a marker node, and can be rebuilt from a new View of any shape.
//
// Everything in this package runs on the tick goroutine with host access
// held: during a mount, or inside an executor flush.
package view

import (
	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/reactive"
	"github.com/go-drift/hostbridge/pkg/tree"
)

// Context carries what a state needs after Build returns.
type Context struct {
	Mutator  *tree.Mutator
	Executor *executor.Executor
	Owner    *reactive.Owner
}

// Child returns a context with a child owner of c.Owner.
func (c *Context) Child() *Context {
	return &Context{
		Mutator:  c.Mutator,
		Executor: c.Executor,
		Owner:    c.Owner.NewChild(),
	}
}

// View describes host nodes. The set of implementations is closed.
type View interface {
	Build(ctx *Context) State
	view()
}

// State is a built view.
type State interface {
	// Nodes returns the top-level nodes in order.
	Nodes() []tree.NodeID
	// Mount attaches the top-level nodes under parent, before marker when
	// marker is non-zero and currently a child of parent, otherwise last.
	Mount(parent, marker tree.NodeID)
	// Unmount destroys every node the state owns.
	Unmount()
	// InsertBeforeThis mounts child immediately before this state's first
	// node. It returns false when this state is not mounted.
	InsertBeforeThis(child State) bool
	// Rebuild updates the state to match v and returns the state that now
	// represents it, which is a new one when v has a different shape.
	Rebuild(v View) State
}

func attach(m *tree.Mutator, node, parent, marker tree.NodeID) {
	if marker != 0 && m.AttachBefore(node, parent, marker) {
		return
	}
	m.Attach(node, parent)
}

func insertBefore(m *tree.Mutator, nodes []tree.NodeID, child State) bool {
	if len(nodes) == 0 {
		return false
	}
	parent, ok := m.Parent(nodes[0])
	if !ok {
		return false
	}
	child.Mount(parent, nodes[0])
	return true
}

// replace builds v, mounts it where old was and unmounts old. Every state
// owns at least one node, so a mounted old always has a position; when old
// is not mounted, next is left detached for the caller's later Mount.
func replace(ctx *Context, old State, v View) State {
	next := v.Build(ctx)
	old.InsertBeforeThis(next)
	old.Unmount()
	return next
}
