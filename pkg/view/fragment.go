package view

import "github.com/go-drift/hostbridge/pkg/tree"

// FragmentAnchorName is the node name given to a Fragment's end marker.
const FragmentAnchorName = "fragment"

// Fragment is a sequence of views. Its children are placed in front of an
// empty anchor node, so an empty Fragment still has a position among its
// siblings and can grow or be replaced in place.
type Fragment []View

func (Fragment) view() {}

// Build builds each child and the anchor. Nothing is attached until Mount.
func (f Fragment) Build(ctx *Context) State {
	s := &fragmentState{ctx: ctx}
	s.anchor = ctx.Mutator.CreateNode()
	ctx.Mutator.SetName(s.anchor, FragmentAnchorName)
	for _, child := range f {
		s.children = append(s.children, child.Build(ctx))
	}
	return s
}

type fragmentState struct {
	ctx      *Context
	children []State
	anchor   tree.NodeID
}

func (s *fragmentState) Nodes() []tree.NodeID {
	var out []tree.NodeID
	for _, child := range s.children {
		out = append(out, child.Nodes()...)
	}
	return append(out, s.anchor)
}

func (s *fragmentState) Mount(parent, marker tree.NodeID) {
	for _, child := range s.children {
		child.Mount(parent, marker)
	}
	attach(s.ctx.Mutator, s.anchor, parent, marker)
}

func (s *fragmentState) Unmount() {
	for _, child := range s.children {
		child.Unmount()
	}
	s.children = nil
	s.ctx.Mutator.Destroy(s.anchor)
}

func (s *fragmentState) InsertBeforeThis(child State) bool {
	return insertBefore(s.ctx.Mutator, s.Nodes(), child)
}

// Rebuild rebuilds children by position. New children go in front of the
// anchor.
func (s *fragmentState) Rebuild(v View) State {
	f, ok := v.(Fragment)
	if !ok {
		return replace(s.ctx, s, v)
	}
	parent, mounted := s.ctx.Mutator.Parent(s.anchor)
	if !mounted {
		s.children = rebuildDetached(s.ctx, s.children, f)
		return s
	}
	s.children = rebuildChildren(s.ctx, s.children, f, parent, s.anchor)
	return s
}

// rebuildDetached is rebuildChildren for states that are not mounted yet:
// new children are built and left for the next Mount.
func rebuildDetached(ctx *Context, states []State, views []View) []State {
	out := make([]State, 0, len(views))
	for i, v := range views {
		if i < len(states) {
			out = append(out, states[i].Rebuild(v))
			continue
		}
		out = append(out, v.Build(ctx))
	}
	for _, extra := range states[min(len(states), len(views)):] {
		extra.Unmount()
	}
	return out
}
