package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
)

var crateClass = &marshal.ClassDesc{
	Name:   "Crate",
	Fields: []marshal.FieldDesc{{Name: "Weight", Type: marshal.FloatType}},
}

func newCrate() marshal.Object { return marshal.NewDynamicObject(crateClass) }

func TestRegisterAndFind(t *testing.T) {
	r := New()
	a := newCrate()

	require.NoError(t, r.Register(42, a))

	got, ok := r.FindByID(42)
	require.True(t, ok)
	assert.Same(t, a, got)

	id, ok := r.FindID(a)
	require.True(t, ok)
	assert.Equal(t, ID(42), id)

	e, ok := r.Entry(42)
	require.True(t, ok)
	assert.Equal(t, "Crate", e.Class)
	assert.Equal(t, StateCreated, e.State)
	assert.True(t, e.Replicate)
}

func TestRegisterDuplicateKeepsExisting(t *testing.T) {
	r := New()
	a, b := newCrate(), newCrate()

	require.NoError(t, r.Register(1, a))
	assert.ErrorIs(t, r.Register(1, b), ErrAlreadyRegistered)
	assert.ErrorIs(t, r.Register(2, a), ErrAlreadyRegistered, "one id per instance")

	got, _ := r.FindByID(1)
	assert.Same(t, a, got)
	_, ok := r.FindID(b)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterInvalid(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Register(0, newCrate()), ErrInvalidID)
	assert.ErrorIs(t, r.Register(5, nil), ErrInvalidID)
}

func TestBidirectionalConsistency(t *testing.T) {
	r := New()
	objs := map[ID]marshal.Object{}
	for id := ID(1); id <= 20; id++ {
		objs[id] = newCrate()
		require.NoError(t, r.Register(id, objs[id]))
	}
	require.NoError(t, r.Remap(r.allocPending(t), 100))
	assert.True(t, r.Unregister(7))

	for _, e := range r.Entries() {
		id, ok := r.FindID(e.Object)
		require.True(t, ok)
		assert.Equal(t, e.ID, id)

		obj, ok := r.FindByID(id)
		require.True(t, ok)
		assert.Same(t, e.Object, obj)
	}
	assert.Equal(t, 20, r.Len())
}

// allocPending registers a fresh object under a new temporary id.
func (r *Registry) allocPending(t *testing.T) ID {
	t.Helper()
	id := r.AllocateTempID()
	require.NoError(t, r.RegisterPending(id, newCrate()))
	return id
}

func TestRemapScenario(t *testing.T) {
	r := New()
	a := newCrate()

	require.NoError(t, r.RegisterPending(1000, a))
	require.NoError(t, r.Remap(1000, 42))

	_, ok := r.FindByID(1000)
	assert.False(t, ok, "temporary id no longer resolves")

	got, ok := r.FindByID(42)
	require.True(t, ok)
	assert.Same(t, a, got)

	id, _ := r.FindID(a)
	assert.Equal(t, ID(42), id)

	e, _ := r.Entry(42)
	assert.Equal(t, StateConfirmed, e.State)
	assert.Equal(t, ID(1000), e.TempID)

	server, ok := r.RemappedTo(1000)
	require.True(t, ok)
	assert.Equal(t, ID(42), server)
}

func TestRemapTwiceFailsWithoutSideEffects(t *testing.T) {
	r := New()
	a := newCrate()
	require.NoError(t, r.RegisterPending(1000, a))
	require.NoError(t, r.Remap(1000, 42))

	before := r.Entries()
	assert.ErrorIs(t, r.Remap(1000, 43), ErrAlreadyRemapped)
	assert.Equal(t, before, r.Entries())

	_, ok := r.FindByID(43)
	assert.False(t, ok)
	assert.ErrorIs(t, r.RegisterPending(1000, newCrate()), ErrAlreadyRemapped)
}

func TestRemapFailures(t *testing.T) {
	r := New()
	assert.ErrorIs(t, r.Remap(5, 6), ErrNotFound)

	require.NoError(t, r.Register(7, newCrate()))
	assert.ErrorIs(t, r.Remap(7, 8), ErrNotPending, "server-created ids are never remapped")

	require.NoError(t, r.RegisterPending(1000, newCrate()))
	assert.ErrorIs(t, r.Remap(1000, 7), ErrAlreadyRegistered)
	assert.ErrorIs(t, r.Remap(1000, 0), ErrInvalidID)

	require.True(t, r.Unregister(7))
	assert.ErrorIs(t, r.Remap(1000, 7), ErrDestroyed)

	e, ok := r.Entry(1000)
	require.True(t, ok, "failed remaps leave the pending entry in place")
	assert.Equal(t, StatePending, e.State)
}

func TestUnregisterIsTerminal(t *testing.T) {
	r := New()
	a := newCrate()
	require.NoError(t, r.Register(9, a))

	assert.True(t, r.Unregister(9))
	assert.False(t, r.Unregister(9))
	assert.True(t, r.IsDestroyed(9))

	_, ok := r.FindByID(9)
	assert.False(t, ok)
	_, ok = r.FindID(a)
	assert.False(t, ok)

	assert.ErrorIs(t, r.Register(9, newCrate()), ErrDestroyed)
	require.NoError(t, r.Register(10, a), "the instance itself may register again under a new id")
}

func TestPurge(t *testing.T) {
	r := New()
	a := newCrate()
	require.NoError(t, r.Register(3, a))

	assert.True(t, r.Purge(a))
	assert.False(t, r.Purge(a))
	assert.Equal(t, 0, r.Len())
	assert.True(t, r.IsDestroyed(3))
}

func TestAllocateTempID(t *testing.T) {
	r := New(WithTempIDBase(500))
	require.NoError(t, r.Register(501, newCrate()))

	assert.Equal(t, ID(500), r.AllocateTempID())
	assert.Equal(t, ID(502), r.AllocateTempID(), "ids in use are skipped")

	assert.Equal(t, DefaultTempIDBase, New().AllocateTempID())
}

func TestEntriesSorted(t *testing.T) {
	r := New()
	for _, id := range []ID{30, 10, 20} {
		require.NoError(t, r.Register(id, newCrate(), WithReplicate(id != 20)))
	}

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []ID{10, 20, 30}, []ID{entries[0].ID, entries[1].ID, entries[2].ID})
	assert.False(t, entries[1].Replicate)
}

func TestResolver(t *testing.T) {
	r := New()
	a := newCrate()
	require.NoError(t, r.Register(11, a))

	id, ok := r.ObjectID(a)
	require.True(t, ok)
	assert.Equal(t, uint64(11), id)

	obj, ok := r.ResolveObject(11)
	require.True(t, ok)
	assert.Same(t, a, obj)

	_, ok = r.ResolveObject(12)
	assert.False(t, ok)
}
