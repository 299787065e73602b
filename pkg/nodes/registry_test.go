package nodes

import (
	"testing"

	"github.com/go-drift/hostbridge/pkg/errors"
	"github.com/go-drift/hostbridge/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AllocateIDStrictlyIncreasing(t *testing.T) {
	r := NewRegistry()
	prev := r.AllocateID()
	for range 100 {
		next := r.AllocateID()
		require.Greater(t, next, prev)
		prev = next
	}
	assert.Equal(t, uint64(101), r.Allocated())
}

func TestRegistry_SpawnTagsEntity(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()

	rec := r.Spawn(w)
	assert.False(t, rec.HasParent())

	tag, ok := w.Component(rec.Entity, NodeComponent)
	require.True(t, ok)
	assert.Equal(t, rec.ID, tag)

	id, ok := r.Lookup(rec.Entity)
	require.True(t, ok)
	assert.Equal(t, rec.ID, id)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(99)
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
	assert.True(t, errors.IsInvariant(err))
}

func TestRegistry_RemovedIDsReportDestroyed(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	rec := r.Spawn(w)
	r.Remove(rec.ID)

	_, err := r.Get(rec.ID)
	assert.ErrorIs(t, err, errors.ErrNodeDestroyed)
	_, ok := r.Lookup(rec.Entity)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_ReservedIDsReportNotFound(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	reserved := r.AllocateID()
	spawned := r.Spawn(w)
	r.Remove(spawned.ID)

	_, err := r.Get(reserved)
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
	_, err = r.Get(spawned.ID)
	assert.ErrorIs(t, err, errors.ErrNodeDestroyed)
	assert.Greater(t, spawned.ID, reserved)
}

func TestRegistry_IDsNotReusedAfterSlotRecycle(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()

	first := r.Spawn(w)
	w.Despawn(first.Entity)
	r.Remove(first.ID)

	second := r.Spawn(w)
	assert.Equal(t, first.Entity.Index, second.Entity.Index, "host slot recycled")
	assert.NotEqual(t, first.ID, second.ID)

	_, err := r.Get(first.ID)
	assert.ErrorIs(t, err, errors.ErrNodeDestroyed)
}

func TestRegistry_GetManyInOrder(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	a, b, c := r.Spawn(w), r.Spawn(w), r.Spawn(w)

	recs, err := r.GetMany(c.ID, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []*Record{c, a, b}, recs)
}

func TestRegistry_GetManyDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	a, b := r.Spawn(w), r.Spawn(w)

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		require.True(t, ok, "expected error panic, got %T", rec)
		assert.ErrorIs(t, err, errors.ErrDuplicateNode)
	}()
	_, _ = r.GetMany(a.ID, b.ID, a.ID)
	t.Fatal("GetMany should have panicked")
}

func TestRegistry_GetManyMissing(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	a := r.Spawn(w)
	_, err := r.GetMany(a.ID, 42)
	assert.ErrorIs(t, err, errors.ErrNodeNotFound)
}

func TestRecord_ParentLinkIsAllOrNothing(t *testing.T) {
	r := NewRegistry()
	w := host.NewWorld()
	parent, child := r.Spawn(w), r.Spawn(w)

	child.SetParent(parent)
	id, entity, ok := child.Parent()
	require.True(t, ok)
	assert.Equal(t, parent.ID, id)
	assert.Equal(t, parent.Entity, entity)

	child.ClearParent()
	id, entity, ok = child.Parent()
	assert.False(t, ok)
	assert.Zero(t, id)
	assert.Equal(t, host.Entity{}, entity)
}
