package view

import (
	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/reactive"
	"github.com/go-drift/hostbridge/pkg/tree"
)

// AnchorName is the node name given to a Dynamic's position marker.
const AnchorName = "dynamic"

// Dynamic re-renders its content every time Trigger fires. The re-render is
// queued on the executor's local queue, so it happens during the next flush
// rather than inside Notify.
//
// Content is placed before an empty anchor node, which keeps the position of
// the Dynamic stable across re-renders.
type Dynamic struct {
	Trigger *reactive.Trigger
	Render  func() View
}

func (Dynamic) view() {}

// Build renders the content once and subscribes to the trigger.
func (d Dynamic) Build(ctx *Context) State {
	m := ctx.Mutator
	s := &dynamicState{ctx: ctx, render: d.Render}
	s.anchor = m.CreateNode()
	m.SetName(s.anchor, AnchorName)
	s.owner = ctx.Child()
	s.content = d.Render().Build(s.owner)
	s.subscribe(d.Trigger)
	s.forget = ctx.Owner.OnCleanup(s.release)
	return s
}

type dynamicState struct {
	ctx     *Context
	owner   *Context
	render  func() View
	trigger *reactive.Trigger
	unsub   func()
	forget  func()
	anchor  tree.NodeID
	content State
	queued  bool
	dead    bool
}

func (s *dynamicState) subscribe(t *reactive.Trigger) {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.trigger = t
	if t == nil {
		return
	}
	s.unsub = t.Subscribe(s.schedule)
}

// schedule queues at most one re-render per flush.
func (s *dynamicState) schedule() {
	if s.queued || s.dead {
		return
	}
	s.queued = true
	s.ctx.Executor.SpawnLocal(executor.TaskFunc(func() executor.Status {
		s.queued = false
		if !s.dead {
			s.rerender()
		}
		return executor.Ready
	}))
}

// rerender discards the current content and its owner, then builds fresh
// content in front of the anchor.
func (s *dynamicState) rerender() {
	s.owner.Owner.Dispose()
	s.owner = s.ctx.Child()
	next := s.render().Build(s.owner)
	if parent, ok := s.ctx.Mutator.Parent(s.anchor); ok {
		next.Mount(parent, s.anchor)
	}
	s.content.Unmount()
	s.content = next
}

func (s *dynamicState) Nodes() []tree.NodeID {
	return append(s.content.Nodes(), s.anchor)
}

func (s *dynamicState) Mount(parent, marker tree.NodeID) {
	s.content.Mount(parent, marker)
	attach(s.ctx.Mutator, s.anchor, parent, marker)
}

// release drops the subscription and the content owner without touching
// host nodes.
func (s *dynamicState) release() {
	s.dead = true
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	s.owner.Owner.Dispose()
}

func (s *dynamicState) Unmount() {
	s.forget()
	s.release()
	s.content.Unmount()
	s.ctx.Mutator.Destroy(s.anchor)
}

func (s *dynamicState) InsertBeforeThis(child State) bool {
	return insertBefore(s.ctx.Mutator, s.Nodes(), child)
}

// Rebuild adopts the new render function and trigger and re-renders now.
func (s *dynamicState) Rebuild(v View) State {
	d, ok := v.(Dynamic)
	if !ok {
		return replace(s.ctx, s, v)
	}
	s.render = d.Render
	if d.Trigger != s.trigger {
		s.subscribe(d.Trigger)
	}
	s.rerender()
	return s
}
