package bridge

import (
	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/reactive"
	"github.com/go-drift/hostbridge/pkg/view"
)

// Context is handed to an App while its root is being built. Hooks take it
// to reach the root they belong to.
type Context struct {
	View *view.Context

	runtime *Runtime
	root    *root
}

// Root returns the id of the root being built.
func (c *Context) Root() RootID { return c.root.id }

// Runtime returns the runtime that owns the root.
func (c *Context) Runtime() *Runtime { return c.runtime }

// Owner returns the root's owner.
func (c *Context) Owner() *reactive.Owner { return c.View.Owner }

// With calls fn with the leased host store.
func (c *Context) With(fn func(host.Store) error) error {
	return c.runtime.cell.With(fn)
}

// Update queues fn to run against the host store during the next flush.
func (c *Context) Update(fn func(host.Store)) {
	c.runtime.exec.SpawnLocal(executor.TaskFunc(func() executor.Status {
		c.runtime.cell.Must(fn)
		return executor.Ready
	}))
}

// ResourceSignal is a host resource exposed to views. Its trigger fires on
// every tick in which the resource's version advanced.
type ResourceSignal struct {
	id      host.ResourceID
	trigger *reactive.Trigger
	runtime *Runtime
}

// ID returns the watched resource id.
func (s *ResourceSignal) ID() host.ResourceID { return s.id }

// Trigger returns the change trigger.
func (s *ResourceSignal) Trigger() *reactive.Trigger { return s.trigger }

// Get reads the resource. It only succeeds while the host is leased, which is
// always the case inside Render callbacks and tasks.
func (s *ResourceSignal) Get() (any, bool) {
	var (
		v  any
		ok bool
	)
	err := s.runtime.cell.With(func(st host.Store) error {
		v, ok = st.Resource(s.id)
		return nil
	})
	if err != nil {
		return nil, false
	}
	return v, ok
}

// ResourceValue reads s and asserts the value to T.
func ResourceValue[T any](s *ResourceSignal) (T, bool) {
	v, ok := s.Get()
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// UseResource watches resource for the root being built. The watch is
// dropped when the context's owner is disposed.
func UseResource(ctx *Context, resource host.ResourceID) *ResourceSignal {
	sig := &ResourceSignal{
		id:      resource,
		trigger: reactive.NewTrigger(),
		runtime: ctx.runtime,
	}
	rt := ctx.root
	ctx.runtime.cell.Must(func(s host.Store) {
		version, _ := s.ResourceVersion(resource)
		rt.watch(resource, sig.trigger, version)
	})
	ctx.View.Owner.OnCleanup(func() {
		rt.unwatch(resource, sig.trigger)
	})
	return sig
}

// UseLifecycleEntity spawns a host entity now and despawns it when the
// context's owner is disposed. Cleanup without a lease is reported and the
// entity is left in place.
func UseLifecycleEntity(ctx *Context, spawn func(host.Store) host.Entity) host.Entity {
	var entity host.Entity
	cell := ctx.runtime.cell
	cell.Must(func(s host.Store) {
		entity = spawn(s)
	})
	ctx.View.Owner.OnCleanup(func() {
		err := cell.With(func(s host.Store) error {
			if s.Contains(entity) {
				s.DespawnRecursive(entity)
			}
			return nil
		})
		errors.ReportAt("bridge.UseLifecycleEntity", 0, errors.KindAccess, err)
	})
	return entity
}
