// Package tree implements the structural edits the view runtime issues
// against the host: create, attach, ordered insertion, detach and recursive
// destroy, plus the parent/child/sibling queries and text/attribute
// primitives a reconciler needs.
//
// Every edit updates the node registry and the host store together, and
// reaches the host only through the access cell. Unknown or destroyed ids are
// invariant violations: ids only come from this package, so a missing id
// means corrupted bookkeeping, and the edit panics instead of guessing.
//
// A node moves through Built (no parent) -> Mounted (parent) <-> Detached
// (no parent) -> Destroyed. Destroyed is terminal.
package tree

import (
	"log/slog"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/access"
	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/nodes"
)

// Component names used for node content on the host.
const (
	TextComponent   = "text"
	AttributePrefix = "attr:"
	NameComponent   = "name"
)

// NodeID is re-exported for callers that only deal with the mutator.
type NodeID = nodes.NodeID

// Observer receives structural edit notifications. All methods are called on
// the tick goroutine.
type Observer interface {
	NodeCreated(id NodeID)
	NodesDestroyed(count int)
}

// Mutator applies structural edits.
//
// Mutator is NOT safe for concurrent use.
type Mutator struct {
	registry *nodes.Registry
	cell     *access.Cell
	logger   *slog.Logger
	observer Observer
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithLogger sets the logger used for debug-level edit tracing.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mutator) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver registers an observer for node creation and destruction.
func WithObserver(o Observer) Option {
	return func(m *Mutator) {
		m.observer = o
	}
}

// New creates a mutator over registry that reaches the host through cell.
func New(registry *nodes.Registry, cell *access.Cell, opts ...Option) *Mutator {
	m := &Mutator{
		registry: registry,
		cell:     cell,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the node registry.
func (m *Mutator) Registry() *nodes.Registry {
	return m.registry
}

// Cell returns the access cell.
func (m *Mutator) Cell() *access.Cell {
	return m.cell
}

func (m *Mutator) get(op string, id NodeID) *nodes.Record {
	rec, err := m.registry.Get(id)
	if err != nil {
		panic(retag(op, err))
	}
	return rec
}

func (m *Mutator) getMany(op string, ids ...NodeID) []*nodes.Record {
	recs, err := m.registry.GetMany(ids...)
	if err != nil {
		panic(retag(op, err))
	}
	return recs
}

// retag rewrites the Op of a registry error so the panic names the edit.
func retag(op string, err error) error {
	var be *errors.BridgeError
	if errors.As(err, &be) {
		return errors.Invariant(op, be.Node, be.Err)
	}
	return errors.Invariant(op, 0, err)
}

// CreateNode spawns a new parentless node.
func (m *Mutator) CreateNode() NodeID {
	var rec *nodes.Record
	m.cell.Must(func(s host.Store) {
		rec = m.registry.Spawn(s)
	})
	m.logger.Debug("create node", "node", rec.ID, "entity", rec.Entity)
	if m.observer != nil {
		m.observer.NodeCreated(rec.ID)
	}
	return rec.ID
}

// CreateText spawns a new parentless node carrying text.
func (m *Mutator) CreateText(text string) NodeID {
	id := m.CreateNode()
	m.SetText(id, text)
	return id
}

// Attach appends node as the last child of parent.
func (m *Mutator) Attach(node, parent NodeID) {
	recs := m.getMany("tree.Attach", node, parent)
	child, p := recs[0], recs[1]
	m.cell.Must(func(s host.Store) {
		m.checkAcyclic(s, "tree.Attach", child, p)
		s.SetParent(child.Entity, p.Entity)
	})
	child.SetParent(p)
	m.logger.Debug("attach", "node", node, "parent", parent)
}

// AttachBefore inserts node immediately before marker among parent's
// children. When marker is not currently a child of parent it returns false
// and changes nothing, so the caller can fall back to Attach.
func (m *Mutator) AttachBefore(node, parent, marker NodeID) bool {
	recs := m.getMany("tree.AttachBefore", node, parent, marker)
	child, p, mark := recs[0], recs[1], recs[2]
	inserted := false
	m.cell.Must(func(s host.Store) {
		siblings := s.Children(p.Entity)
		index := 0
		found := false
		for _, e := range siblings {
			if e == child.Entity {
				continue
			}
			if e == mark.Entity {
				found = true
				break
			}
			index++
		}
		if !found {
			return
		}
		m.checkAcyclic(s, "tree.AttachBefore", child, p)
		s.InsertChild(p.Entity, index, child.Entity)
		inserted = true
	})
	if !inserted {
		m.logger.Debug("attach before: marker not a child", "node", node, "parent", parent, "marker", marker)
		return false
	}
	child.SetParent(p)
	m.logger.Debug("attach before", "node", node, "parent", parent, "marker", marker)
	return true
}

// checkAcyclic panics when parent is child or one of its descendants.
func (m *Mutator) checkAcyclic(s host.Store, op string, child, parent *nodes.Record) {
	for e, ok := parent.Entity, true; ok; e, ok = s.Parent(e) {
		if e == child.Entity {
			errors.Fatal(op, uint64(child.ID), errors.ErrCycle)
		}
	}
}

// Detach clears node's structural parent. The node stays alive on the host.
// Detaching a node without a parent is a no-op.
func (m *Mutator) Detach(node NodeID) {
	rec := m.get("tree.Detach", node)
	if !rec.HasParent() {
		return
	}
	m.cell.Must(func(s host.Store) {
		s.RemoveParent(rec.Entity)
	})
	rec.ClearParent()
	m.logger.Debug("detach", "node", node)
}

// Destroy removes node and every structural descendant from the host and
// purges them from the registry.
func (m *Mutator) Destroy(node NodeID) {
	rec := m.get("tree.Destroy", node)
	var doomed []NodeID
	m.cell.Must(func(s host.Store) {
		stack := []host.Entity{rec.Entity}
		for len(stack) > 0 {
			n := len(stack) - 1
			e := stack[n]
			stack = stack[:n]
			if id, ok := m.registry.Lookup(e); ok {
				doomed = append(doomed, id)
			}
			stack = append(stack, s.Children(e)...)
		}
		s.DespawnRecursive(rec.Entity)
	})
	for _, id := range doomed {
		m.registry.Remove(id)
	}
	m.logger.Debug("destroy", "node", node, "removed", len(doomed))
	if m.observer != nil {
		m.observer.NodesDestroyed(len(doomed))
	}
}

// ClearChildren destroys every child of node.
func (m *Mutator) ClearChildren(node NodeID) {
	for _, child := range m.Children(node) {
		m.Destroy(child)
	}
}

// Parent returns node's structural parent.
func (m *Mutator) Parent(node NodeID) (NodeID, bool) {
	id, _, ok := m.get("tree.Parent", node).Parent()
	return id, ok
}

// Children returns node's children in host order. Host children that are not
// registered nodes are skipped.
func (m *Mutator) Children(node NodeID) []NodeID {
	rec := m.get("tree.Children", node)
	var out []NodeID
	m.cell.Must(func(s host.Store) {
		for _, e := range s.Children(rec.Entity) {
			if id, ok := m.registry.Lookup(e); ok {
				out = append(out, id)
			}
		}
	})
	return out
}

// FirstChild returns node's first child.
func (m *Mutator) FirstChild(node NodeID) (NodeID, bool) {
	children := m.Children(node)
	if len(children) == 0 {
		return 0, false
	}
	return children[0], true
}

// NextSibling returns the child that follows node under its parent.
func (m *Mutator) NextSibling(node NodeID) (NodeID, bool) {
	parent, ok := m.Parent(node)
	if !ok {
		return 0, false
	}
	siblings := m.Children(parent)
	for i, id := range siblings {
		if id == node && i+1 < len(siblings) {
			return siblings[i+1], true
		}
	}
	return 0, false
}

// SetText sets the text content of node.
func (m *Mutator) SetText(node NodeID, text string) {
	rec := m.get("tree.SetText", node)
	m.cell.Must(func(s host.Store) {
		s.SetComponent(rec.Entity, TextComponent, text)
	})
}

// Text returns the text content of node.
func (m *Mutator) Text(node NodeID) (string, bool) {
	return m.stringComponent("tree.Text", node, TextComponent)
}

// SetAttribute sets a named attribute on node.
func (m *Mutator) SetAttribute(node NodeID, name, value string) {
	rec := m.get("tree.SetAttribute", node)
	m.cell.Must(func(s host.Store) {
		s.SetComponent(rec.Entity, AttributePrefix+name, value)
	})
}

// RemoveAttribute removes a named attribute from node.
func (m *Mutator) RemoveAttribute(node NodeID, name string) {
	rec := m.get("tree.RemoveAttribute", node)
	m.cell.Must(func(s host.Store) {
		s.RemoveComponent(rec.Entity, AttributePrefix+name)
	})
}

// Attribute returns a named attribute of node.
func (m *Mutator) Attribute(node NodeID, name string) (string, bool) {
	return m.stringComponent("tree.Attribute", node, AttributePrefix+name)
}

// SetName sets the display name of node.
func (m *Mutator) SetName(node NodeID, name string) {
	rec := m.get("tree.SetName", node)
	m.cell.Must(func(s host.Store) {
		s.SetComponent(rec.Entity, NameComponent, name)
	})
}

// Name returns the display name of node.
func (m *Mutator) Name(node NodeID) (string, bool) {
	return m.stringComponent("tree.Name", node, NameComponent)
}

// Entity returns the host entity behind node.
func (m *Mutator) Entity(node NodeID) host.Entity {
	return m.get("tree.Entity", node).Entity
}

// Alive reports whether node is registered.
func (m *Mutator) Alive(node NodeID) bool {
	_, err := m.registry.Get(node)
	return err == nil
}

func (m *Mutator) stringComponent(op string, node NodeID, name string) (string, bool) {
	rec := m.get(op, node)
	var (
		out string
		ok  bool
	)
	m.cell.Must(func(s host.Store) {
		v, found := s.Component(rec.Entity, name)
		if !found {
			return
		}
		out, ok = v.(string)
	})
	return out, ok
}
