// Package nodes maps the logical node ids used by the view runtime onto host
// entities and records each node's structural parent.
//
// Node ids are allocated from a strictly increasing counter and are never
// reused. Host entity slots are recycled, so an id is the only stable way to
// tell a destroyed node from a fresh one that landed in the same slot.
package nodes

import (
	"fmt"

	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/host"
)

// NodeComponent is the host component that tags an entity with its node id.
const NodeComponent = "node"

// NodeID identifies a node. The zero value is never allocated.
type NodeID uint64

func (id NodeID) String() string {
	return fmt.Sprintf("#%d", uint64(id))
}

type parentLink struct {
	id     NodeID
	entity host.Entity
}

// Record is the registry's view of one node.
type Record struct {
	ID     NodeID
	Entity host.Entity
	parent *parentLink
}

// Parent returns the structural parent recorded for this node.
func (r *Record) Parent() (NodeID, host.Entity, bool) {
	if r.parent == nil {
		return 0, host.Entity{}, false
	}
	return r.parent.id, r.parent.entity, true
}

// HasParent reports whether the node is attached.
func (r *Record) HasParent() bool {
	return r.parent != nil
}

// SetParent records parent as this node's structural parent.
func (r *Record) SetParent(parent *Record) {
	r.parent = &parentLink{id: parent.ID, entity: parent.Entity}
}

// ClearParent removes the recorded parent.
func (r *Record) ClearParent() {
	r.parent = nil
}

// Registry owns every live Record.
//
// Registry is NOT safe for concurrent use.
type Registry struct {
	next     NodeID
	records  map[NodeID]*Record
	entities map[host.Entity]NodeID
	// reserved holds ids handed out by AllocateID that never got a record.
	reserved map[NodeID]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records:  make(map[NodeID]*Record),
		entities: make(map[host.Entity]NodeID),
		reserved: make(map[NodeID]struct{}),
	}
}

// AllocateID reserves the next node id without spawning anything. Lookups
// of a reserved id report ErrNodeNotFound, since it never named a node.
func (r *Registry) AllocateID() NodeID {
	id := r.allocate()
	r.reserved[id] = struct{}{}
	return id
}

func (r *Registry) allocate() NodeID {
	r.next++
	return r.next
}

// Spawn allocates an id, spawns a host entity tagged with it and records the
// node without a parent.
func (r *Registry) Spawn(s host.Store) *Record {
	id := r.allocate()
	entity := s.Spawn()
	s.SetComponent(entity, NodeComponent, id)
	rec := &Record{ID: id, Entity: entity}
	r.records[id] = rec
	r.entities[entity] = id
	return rec
}

// Get returns the record for id. Ids that were spawned and later removed
// yield ErrNodeDestroyed; anything else unknown yields ErrNodeNotFound.
func (r *Registry) Get(id NodeID) (*Record, error) {
	if rec, ok := r.records[id]; ok {
		return rec, nil
	}
	return nil, r.missing("nodes.Get", id)
}

func (r *Registry) missing(op string, id NodeID) error {
	err := errors.ErrNodeNotFound
	_, reserved := r.reserved[id]
	if id != 0 && id <= r.next && !reserved {
		err = errors.ErrNodeDestroyed
	}
	return &errors.BridgeError{
		Op:   op,
		Kind: errors.KindInvariant,
		Node: uint64(id),
		Err:  err,
	}
}

// GetMany returns the records for ids in order. Duplicate ids are a
// programmer error and panic rather than handing out aliased records.
func (r *Registry) GetMany(ids ...NodeID) ([]*Record, error) {
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if ids[i] == ids[j] {
				errors.Fatal("nodes.GetMany", uint64(ids[i]), errors.ErrDuplicateNode)
			}
		}
	}
	out := make([]*Record, len(ids))
	for i, id := range ids {
		rec, ok := r.records[id]
		if !ok {
			return nil, r.missing("nodes.GetMany", id)
		}
		out[i] = rec
	}
	return out, nil
}

// Lookup returns the node id tagged on entity.
func (r *Registry) Lookup(entity host.Entity) (NodeID, bool) {
	id, ok := r.entities[entity]
	return id, ok
}

// Remove purges id. Later lookups fail with ErrNodeDestroyed.
func (r *Registry) Remove(id NodeID) {
	rec, ok := r.records[id]
	if !ok {
		return
	}
	delete(r.records, id)
	delete(r.entities, rec.Entity)
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	return len(r.records)
}

// Allocated returns the number of ids handed out so far.
func (r *Registry) Allocated() uint64 {
	return uint64(r.next)
}
