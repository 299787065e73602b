package view

import (
	"maps"

	"github.com/go-drift/hostbridge/pkg/tree"
)

// Element is a named node with attributes and children.
type Element struct {
	Name     string
	Attrs    map[string]string
	Children []View
}

func (Element) view() {}

// El is shorthand for an Element without attributes.
func El(name string, children ...View) Element {
	return Element{Name: name, Children: children}
}

// Build creates the element node and its children.
func (e Element) Build(ctx *Context) State {
	m := ctx.Mutator
	s := &elementState{ctx: ctx, id: m.CreateNode(), name: e.Name}
	if e.Name != "" {
		m.SetName(s.id, e.Name)
	}
	for k, v := range e.Attrs {
		m.SetAttribute(s.id, k, v)
	}
	s.attrs = maps.Clone(e.Attrs)
	for _, child := range e.Children {
		cs := child.Build(ctx)
		cs.Mount(s.id, 0)
		s.children = append(s.children, cs)
	}
	return s
}

type elementState struct {
	ctx      *Context
	id       tree.NodeID
	name     string
	attrs    map[string]string
	children []State
}

func (s *elementState) Nodes() []tree.NodeID {
	return []tree.NodeID{s.id}
}

func (s *elementState) Mount(parent, marker tree.NodeID) {
	attach(s.ctx.Mutator, s.id, parent, marker)
}

func (s *elementState) Unmount() {
	for _, child := range s.children {
		child.Unmount()
	}
	s.children = nil
	s.ctx.Mutator.Destroy(s.id)
}

func (s *elementState) InsertBeforeThis(child State) bool {
	return insertBefore(s.ctx.Mutator, s.Nodes(), child)
}

// Rebuild keeps the node when the name matches, patches attributes and
// rebuilds children by position.
func (s *elementState) Rebuild(v View) State {
	e, ok := v.(Element)
	if !ok || e.Name != s.name {
		return replace(s.ctx, s, v)
	}
	m := s.ctx.Mutator
	for k := range s.attrs {
		if _, keep := e.Attrs[k]; !keep {
			m.RemoveAttribute(s.id, k)
		}
	}
	for k, v := range e.Attrs {
		if old, ok := s.attrs[k]; !ok || old != v {
			m.SetAttribute(s.id, k, v)
		}
	}
	s.attrs = maps.Clone(e.Attrs)
	s.children = rebuildChildren(s.ctx, s.children, e.Children, s.id, 0)
	return s
}

// rebuildChildren rebuilds states against views by position. New trailing
// views are mounted under parent before marker, or last when marker is zero.
// Surplus states are unmounted.
func rebuildChildren(ctx *Context, states []State, views []View, parent, marker tree.NodeID) []State {
	out := make([]State, 0, len(views))
	for i, v := range views {
		if i < len(states) {
			out = append(out, states[i].Rebuild(v))
			continue
		}
		cs := v.Build(ctx)
		cs.Mount(parent, marker)
		out = append(out, cs)
	}
	for _, extra := range states[min(len(states), len(views)):] {
		extra.Unmount()
	}
	return out
}

// Text is a text node.
type Text string

func (Text) view() {}

// Build creates the text node.
func (t Text) Build(ctx *Context) State {
	return &textState{
		ctx:     ctx,
		id:      ctx.Mutator.CreateText(string(t)),
		content: string(t),
	}
}

type textState struct {
	ctx     *Context
	id      tree.NodeID
	content string
}

func (s *textState) Nodes() []tree.NodeID {
	return []tree.NodeID{s.id}
}

func (s *textState) Mount(parent, marker tree.NodeID) {
	attach(s.ctx.Mutator, s.id, parent, marker)
}

func (s *textState) Unmount() {
	s.ctx.Mutator.Destroy(s.id)
}

func (s *textState) InsertBeforeThis(child State) bool {
	return insertBefore(s.ctx.Mutator, s.Nodes(), child)
}

func (s *textState) Rebuild(v View) State {
	t, ok := v.(Text)
	if !ok {
		return replace(s.ctx, s, v)
	}
	if string(t) != s.content {
		s.content = string(t)
		s.ctx.Mutator.SetText(s.id, s.content)
	}
	return s
}
