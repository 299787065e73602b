// Package host defines the single-writer state store the reactive tree is
// mounted into, and provides World, an in-memory implementation.
//
// A store hands out Entity handles whose slots are recycled after despawn.
// Recycled slots carry a new generation, so a stale Entity never aliases a
// fresh one, but code that keys its own bookkeeping on raw slot indices would.
//
// The store is not safe for concurrent use. Only the goroutine that drives the
// host tick may mutate it.
package host

import (
	"fmt"
	"slices"
)

// Entity is a host-side handle.
type Entity struct {
	Index      uint32
	Generation uint32
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// ResourceID names a host resource.
type ResourceID string

// Store is the structural surface the bridge needs from the host.
type Store interface {
	Spawn() Entity
	Despawn(e Entity)
	DespawnRecursive(e Entity)
	Contains(e Entity) bool

	// SetParent appends child as the last child of parent, removing it from
	// any previous parent first.
	SetParent(child, parent Entity)
	// InsertChild places child at index in parent's children. The index is
	// interpreted after child has been removed from its previous position.
	InsertChild(parent Entity, index int, child Entity)
	RemoveParent(child Entity)
	Parent(e Entity) (Entity, bool)
	Children(e Entity) []Entity

	SetComponent(e Entity, name string, value any)
	Component(e Entity, name string) (any, bool)
	RemoveComponent(e Entity, name string)
	// ComponentNames returns the names of e's components, sorted.
	ComponentNames(e Entity) []string

	// ResourceVersion returns the change counter of a resource. The counter
	// advances every time the resource is inserted or updated.
	ResourceVersion(id ResourceID) (uint64, bool)
	Resource(id ResourceID) (any, bool)
}

type slot struct {
	generation uint32
	alive      bool
	parent     Entity
	hasParent  bool
	children   []Entity
	components map[string]any
}

type resource struct {
	value   any
	version uint64
}

// World is an in-memory Store.
type World struct {
	slots     []slot
	free      []uint32
	live      int
	resources map[ResourceID]*resource
}

var _ Store = (*World)(nil)

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		resources: make(map[ResourceID]*resource),
	}
}

// Spawn creates a new entity, recycling a despawned slot when one is free.
func (w *World) Spawn() Entity {
	w.live++
	if n := len(w.free); n > 0 {
		index := w.free[n-1]
		w.free = w.free[:n-1]
		s := &w.slots[index]
		s.alive = true
		return Entity{Index: index, Generation: s.generation}
	}
	w.slots = append(w.slots, slot{alive: true})
	return Entity{Index: uint32(len(w.slots) - 1)}
}

// Contains reports whether e refers to a live entity.
func (w *World) Contains(e Entity) bool {
	if int(e.Index) >= len(w.slots) {
		return false
	}
	s := &w.slots[e.Index]
	return s.alive && s.generation == e.Generation
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.live
}

func (w *World) slot(e Entity) *slot {
	if !w.Contains(e) {
		panic(fmt.Sprintf("host: entity %v does not exist", e))
	}
	return &w.slots[e.Index]
}

// Despawn removes e. Its children are left alive without a parent.
func (w *World) Despawn(e Entity) {
	s := w.slot(e)
	w.unlink(e)
	for _, child := range s.children {
		c := &w.slots[child.Index]
		c.parent = Entity{}
		c.hasParent = false
	}
	w.release(e)
}

// DespawnRecursive removes e and all of its descendants.
func (w *World) DespawnRecursive(e Entity) {
	w.slot(e)
	w.unlink(e)
	stack := []Entity{e}
	for len(stack) > 0 {
		n := len(stack) - 1
		current := stack[n]
		stack = stack[:n]
		stack = append(stack, w.slots[current.Index].children...)
		w.release(current)
	}
}

func (w *World) release(e Entity) {
	s := &w.slots[e.Index]
	s.alive = false
	s.generation++
	s.parent = Entity{}
	s.hasParent = false
	s.children = nil
	s.components = nil
	w.free = append(w.free, e.Index)
	w.live--
}

// unlink removes e from its parent's child list.
func (w *World) unlink(e Entity) {
	s := &w.slots[e.Index]
	if !s.hasParent {
		return
	}
	p := &w.slots[s.parent.Index]
	if i := slices.Index(p.children, e); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	s.parent = Entity{}
	s.hasParent = false
}

// SetParent appends child to parent's children.
func (w *World) SetParent(child, parent Entity) {
	w.InsertChild(parent, len(w.slot(parent).children)+1, child)
}

// InsertChild inserts child into parent's children at index. Out-of-range
// indices are clamped.
func (w *World) InsertChild(parent Entity, index int, child Entity) {
	if child == parent {
		panic(fmt.Sprintf("host: entity %v cannot parent itself", child))
	}
	w.slot(parent)
	c := w.slot(child)
	w.unlink(child)
	p := &w.slots[parent.Index]
	index = max(0, min(index, len(p.children)))
	p.children = slices.Insert(p.children, index, child)
	c.parent = parent
	c.hasParent = true
}

// RemoveParent detaches child from its parent, if any.
func (w *World) RemoveParent(child Entity) {
	w.slot(child)
	w.unlink(child)
}

// Parent returns the parent of e.
func (w *World) Parent(e Entity) (Entity, bool) {
	s := w.slot(e)
	return s.parent, s.hasParent
}

// Children returns a copy of e's children in order.
func (w *World) Children(e Entity) []Entity {
	return slices.Clone(w.slot(e).children)
}

// Roots returns every live entity without a parent, in slot order.
func (w *World) Roots() []Entity {
	var roots []Entity
	for i := range w.slots {
		s := &w.slots[i]
		if s.alive && !s.hasParent {
			roots = append(roots, Entity{Index: uint32(i), Generation: s.generation})
		}
	}
	return roots
}

// SetComponent attaches a named value to e, replacing any previous value.
func (w *World) SetComponent(e Entity, name string, value any) {
	s := w.slot(e)
	if s.components == nil {
		s.components = make(map[string]any)
	}
	s.components[name] = value
}

// Component returns the named value attached to e.
func (w *World) Component(e Entity, name string) (any, bool) {
	v, ok := w.slot(e).components[name]
	return v, ok
}

// RemoveComponent detaches the named value from e.
func (w *World) RemoveComponent(e Entity, name string) {
	delete(w.slot(e).components, name)
}

// ComponentNames returns the names of e's components, sorted.
func (w *World) ComponentNames(e Entity) []string {
	s := w.slot(e)
	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// InsertResource stores value under id and advances its version.
func (w *World) InsertResource(id ResourceID, value any) {
	r, ok := w.resources[id]
	if !ok {
		r = &resource{}
		w.resources[id] = r
	}
	r.value = value
	r.version++
}

// UpdateResource replaces the value of an existing resource with fn(old) and
// advances its version. It returns false when the resource does not exist.
func (w *World) UpdateResource(id ResourceID, fn func(old any) any) bool {
	r, ok := w.resources[id]
	if !ok {
		return false
	}
	r.value = fn(r.value)
	r.version++
	return true
}

// RemoveResource deletes a resource.
func (w *World) RemoveResource(id ResourceID) {
	delete(w.resources, id)
}

// Resource returns the current value of a resource.
func (w *World) Resource(id ResourceID) (any, bool) {
	r, ok := w.resources[id]
	if !ok {
		return nil, false
	}
	return r.value, true
}

// ResourceVersion returns the change counter of a resource.
func (w *World) ResourceVersion(id ResourceID) (uint64, bool) {
	r, ok := w.resources[id]
	if !ok {
		return 0, false
	}
	return r.version, true
}
