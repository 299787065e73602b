// Package bridge mounts view trees into a host store and drives them from
// the host's tick.
//
// A Runtime owns everything the bridge needs: the access cell, the node
// registry, the tree mutator, the executor and the table of mounted roots.
// Nothing is global, so several runtimes can coexist in one process.
//
// The host calls Tick once per frame. A tick
//
//  1. fires the triggers watching every resource whose version advanced
//     since the root last looked at it,
//  2. leases the host store,
//  3. flushes the executor, which is where re-renders and deferred writes run,
//  4. releases the lease.
//
// A Runtime must be created, mounted into and ticked from the same goroutine.
package bridge

import (
	"log/slog"
	"slices"
	"time"

	"github.com/go-drift/hostbridge/internal/logging"
	"github.com/go-drift/hostbridge/pkg/access"
	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/executor"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/go-drift/hostbridge/pkg/nodes"
	"github.com/go-drift/hostbridge/pkg/reactive"
	"github.com/go-drift/hostbridge/pkg/tree"
	"github.com/go-drift/hostbridge/pkg/view"
)

const (
	// RootComponent marks the host entity of a mounted root.
	RootComponent = "bridge:root"
	// RootName is the display name given to root nodes.
	RootName = "root"
)

// RootID identifies a mounted root by its host entity.
type RootID = host.Entity

// App builds the view of a root. It runs once, inside the root's owner.
type App func(ctx *Context) view.View

// Recorder receives runtime measurements. pkg/metrics provides a
// Prometheus implementation.
type Recorder interface {
	tree.Observer
	executor.Observer
	ObserveTick(d time.Duration, fired int, flush executor.FlushStats, failed bool)
	SetRoots(n int)
}

// TickStats describes one tick.
type TickStats struct {
	Tick     uint64              `json:"tick"`
	Duration time.Duration       `json:"duration"`
	Fired    int                 `json:"fired"`
	Flush    executor.FlushStats `json:"flush"`
}

type root struct {
	id      RootID
	node    tree.NodeID
	owner   *reactive.Owner
	state   view.State
	watches map[host.ResourceID]*watch
}

type watch struct {
	lastSeen uint64
	triggers []*reactive.Trigger
}

// Runtime is the host integration layer.
//
// Runtime is NOT safe for concurrent use. The only methods that may be called
// from other goroutines are Executor().Spawn and TickTrace().
type Runtime struct {
	cell     *access.Cell
	registry *nodes.Registry
	mutator  *tree.Mutator
	exec     *executor.Executor
	logger   *slog.Logger
	recorder Recorder
	trace    *TickTraceBuffer

	roots map[RootID]*root
	order []RootID
	ticks uint64

	traceCapacity  int
	traceThreshold time.Duration
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime logger. Tree edits and flushes log at debug
// level through it.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics installs a recorder.
func WithMetrics(rec Recorder) Option {
	return func(r *Runtime) {
		r.recorder = rec
	}
}

// WithTraceCapacity sets how many tick samples are kept and how long a tick
// may take before it counts as slow. Zero values keep the defaults.
func WithTraceCapacity(capacity int, slow time.Duration) Option {
	return func(r *Runtime) {
		r.traceCapacity = capacity
		r.traceThreshold = slow
	}
}

// New creates a runtime owned by the calling goroutine.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		cell:     access.NewCell(),
		registry: nodes.NewRegistry(),
		logger:   logging.NewNop(),
		roots:    make(map[RootID]*root),
	}
	for _, opt := range opts {
		opt(r)
	}

	treeOpts := []tree.Option{tree.WithLogger(r.logger)}
	execOpts := []executor.Option{executor.WithLogger(r.logger)}
	if r.recorder != nil {
		treeOpts = append(treeOpts, tree.WithObserver(r.recorder))
		execOpts = append(execOpts, executor.WithObserver(r.recorder))
	}
	r.mutator = tree.New(r.registry, r.cell, treeOpts...)
	r.exec = executor.New(execOpts...)
	r.trace = NewTickTraceBuffer(r.traceCapacity, r.traceThreshold)
	return r
}

// Cell returns the access cell.
func (r *Runtime) Cell() *access.Cell { return r.cell }

// Mutator returns the tree mutator.
func (r *Runtime) Mutator() *tree.Mutator { return r.mutator }

// Executor returns the task executor.
func (r *Runtime) Executor() *executor.Executor { return r.exec }

// TickTrace returns the tick trace buffer.
func (r *Runtime) TickTrace() *TickTraceBuffer { return r.trace }

// Ticks returns the number of ticks run so far.
func (r *Runtime) Ticks() uint64 { return r.ticks }

// Roots returns the mounted roots in mount order.
func (r *Runtime) Roots() []RootID {
	return slices.Clone(r.order)
}

// Mount builds app under a new owner, mounts it beneath a fresh root node and
// registers the root. The root node's entity is tagged with RootComponent and
// named RootName.
//
// Mount may be called from inside a task, under the flush's lease. A panic
// while building is recovered into a *errors.BoundaryError; every node the
// build created is destroyed and nothing is registered.
func (r *Runtime) Mount(s host.Store, app App) (id RootID, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = r.boundary("mount", rec)
		}
	}()
	err = r.withAccess(s, func() error {
		mark := nodes.NodeID(r.registry.Allocated())
		owner := reactive.NewOwner()
		node := r.mutator.CreateNode()
		committed := false
		defer func() {
			if !committed {
				owner.Dispose()
				r.destroyAbove(mark)
			}
		}()

		r.mutator.SetName(node, RootName)
		entity := r.mutator.Entity(node)
		r.cell.Must(func(s host.Store) {
			s.SetComponent(entity, RootComponent, true)
		})

		rt := &root{
			id:      entity,
			node:    node,
			owner:   owner,
			watches: make(map[host.ResourceID]*watch),
		}
		ctx := &Context{
			View: &view.Context{
				Mutator:  r.mutator,
				Executor: r.exec,
				Owner:    owner,
			},
			runtime: r,
			root:    rt,
		}
		rt.state = app(ctx).Build(ctx.View)
		rt.state.Mount(node, 0)

		r.roots[entity] = rt
		r.order = append(r.order, entity)
		committed = true
		id = entity
		return nil
	})
	if err == nil {
		r.logger.Info("root mounted", "root", id, "node", r.roots[id].node)
		r.setRoots()
	}
	return id, err
}

// Unmount disposes the root's owner, which runs its cleanups and drops its
// hook subscriptions, then destroys the root's nodes and forgets the root.
// The root is forgotten even when teardown panics.
func (r *Runtime) Unmount(s host.Store, id RootID) (err error) {
	rt, ok := r.roots[id]
	if !ok {
		return r.rootNotFound("bridge.Unmount")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = r.boundary("unmount", rec)
		}
	}()
	err = r.withAccess(s, func() error {
		delete(r.roots, id)
		r.order = slices.DeleteFunc(r.order, func(e RootID) bool { return e == id })
		defer r.setRoots()

		rt.owner.Dispose()
		rt.watches = nil
		rt.state.Unmount()
		r.mutator.Destroy(rt.node)
		return nil
	})
	if err == nil {
		r.logger.Info("root unmounted", "root", id)
	}
	return err
}

// destroyAbove destroys every live node allocated after mark. Ids are never
// reused, so these are exactly the nodes created since mark was taken,
// whether or not they were attached under the root yet.
func (r *Runtime) destroyAbove(mark nodes.NodeID) {
	last := nodes.NodeID(r.registry.Allocated())
	for id := mark + 1; id <= last; id++ {
		if r.mutator.Alive(id) {
			r.mutator.Destroy(id)
		}
	}
}

// withAccess runs fn with the store leased. When the lease is already held,
// as it is inside a flush, fn runs under the existing lease.
func (r *Runtime) withAccess(s host.Store, fn func() error) error {
	if r.cell.Held() {
		return fn()
	}
	return r.cell.Scope(s, fn)
}

// Watch subscribes trigger to changes of resource within root id. Watching
// the same trigger twice is a no-op. The resource's current version counts as
// seen, so the trigger fires on the next change rather than the next tick.
func (r *Runtime) Watch(s host.Store, id RootID, resource host.ResourceID, trigger *reactive.Trigger) error {
	rt, ok := r.roots[id]
	if !ok {
		return r.rootNotFound("bridge.Watch")
	}
	version, _ := s.ResourceVersion(resource)
	rt.watch(resource, trigger, version)
	return nil
}

// Unwatch removes a subscription added by Watch.
func (r *Runtime) Unwatch(id RootID, resource host.ResourceID, trigger *reactive.Trigger) error {
	rt, ok := r.roots[id]
	if !ok {
		return r.rootNotFound("bridge.Unwatch")
	}
	rt.unwatch(resource, trigger)
	return nil
}

func (r *Runtime) rootNotFound(op string) error {
	return &errors.BridgeError{
		Op:   op,
		Kind: errors.KindStructural,
		Err:  errors.ErrRootNotFound,
	}
}

func (rt *root) watch(resource host.ResourceID, trigger *reactive.Trigger, version uint64) {
	if rt.watches == nil {
		return
	}
	w, ok := rt.watches[resource]
	if !ok {
		w = &watch{lastSeen: version}
		rt.watches[resource] = w
	}
	if !slices.Contains(w.triggers, trigger) {
		w.triggers = append(w.triggers, trigger)
	}
}

func (rt *root) unwatch(resource host.ResourceID, trigger *reactive.Trigger) {
	w, ok := rt.watches[resource]
	if !ok {
		return
	}
	w.triggers = slices.DeleteFunc(w.triggers, func(t *reactive.Trigger) bool { return t == trigger })
	if len(w.triggers) == 0 {
		delete(rt.watches, resource)
	}
}

// Tick runs one host tick. See the package documentation for the phases.
//
// A panic anywhere in the tick is recovered into a *errors.BoundaryError,
// reported through the error handler and returned. The lease is released
// either way.
func (r *Runtime) Tick(s host.Store) (stats TickStats, err error) {
	start := time.Now()
	r.ticks++
	stats.Tick = r.ticks
	defer func() {
		if rec := recover(); rec != nil {
			err = r.boundary("tick", rec)
		}
		stats.Duration = time.Since(start)
		r.recordTick(stats, err)
	}()

	stats.Fired = r.notify(s)
	err = r.cell.Scope(s, func() error {
		stats.Flush = r.exec.Flush()
		return nil
	})
	return stats, err
}

// notify fires the triggers of every resource whose version moved past the
// version the root last saw. A missing resource counts as unchanged. A
// trigger that watches two changed resources fires once for each.
func (r *Runtime) notify(s host.Store) int {
	fired := 0
	for _, id := range r.order {
		rt, ok := r.roots[id]
		if !ok {
			continue
		}
		resources := make([]host.ResourceID, 0, len(rt.watches))
		for res := range rt.watches {
			resources = append(resources, res)
		}
		slices.Sort(resources)
		for _, res := range resources {
			w, ok := rt.watches[res]
			if !ok {
				continue
			}
			version, exists := s.ResourceVersion(res)
			if !exists || version == w.lastSeen {
				continue
			}
			w.lastSeen = version
			for _, t := range slices.Clone(w.triggers) {
				t.Notify()
				fired++
			}
		}
	}
	return fired
}

func (r *Runtime) boundary(phase string, rec any) *errors.BoundaryError {
	be := &errors.BoundaryError{
		Phase:      phase,
		Recovered:  rec,
		StackTrace: errors.CaptureStack(),
		Timestamp:  time.Now(),
	}
	errors.ReportBoundaryError(be)
	return be
}

func (r *Runtime) recordTick(stats TickStats, err error) {
	sample := TickSample{
		Timestamp: time.Now().UnixMilli(),
		Tick:      stats.Tick,
		TickMs:    durationToMillis(stats.Duration),
		Fired:     stats.Fired,
		Flush:     stats.Flush,
		Roots:     len(r.order),
		Nodes:     r.registry.Len(),
	}
	if err != nil {
		sample.Error = err.Error()
	}
	r.trace.Add(sample, stats.Duration)
	if r.recorder != nil {
		r.recorder.ObserveTick(stats.Duration, stats.Fired, stats.Flush, err != nil)
	}
	if err != nil {
		r.logger.Error("tick failed", "tick", stats.Tick, "error", err)
	}
}

func (r *Runtime) setRoots() {
	if r.recorder != nil {
		r.recorder.SetRoots(len(r.order))
	}
}
