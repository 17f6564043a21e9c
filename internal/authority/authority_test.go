package authority

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/value"
)

var pawnClass = &marshal.ClassDesc{
	Name: "Pawn",
	Fields: []marshal.FieldDesc{
		{Name: DefaultOwnerField, Type: marshal.Int64Type},
		{Name: "Health", Type: marshal.FloatType},
	},
}

type call struct {
	Reducer string
	Args    string
}

type recorder struct {
	calls  []call
	accept bool
}

func (r *recorder) Call(reducer, args string) bool {
	r.calls = append(r.calls, call{reducer, args})
	return r.accept
}

// objectsOnly resolves object references through the registry and treats
// every class name as known.
type objectsOnly struct{ *registry.Registry }

func (objectsOnly) ResolveClass(string) bool { return true }

func setup(t *testing.T, owner int64) (*Model, *marshal.DynamicObject, *recorder) {
	t.Helper()
	reg := registry.New()
	obj := marshal.NewDynamicObject(pawnClass)
	acc, _ := obj.Property(DefaultOwnerField)
	require.NoError(t, acc.Set(owner))
	require.NoError(t, reg.Register(42, obj))

	rec := &recorder{accept: true}
	return New(marshal.New(marshal.WithResolver(objectsOnly{reg})), reg, rec), obj, rec
}

func TestHasAuthority(t *testing.T) {
	m, obj, _ := setup(t, 7)

	assert.True(t, m.HasAuthority(obj, 7))
	assert.False(t, m.HasAuthority(obj, 8))
	assert.False(t, m.HasAuthority(obj, Server))

	owner, ok := m.Owner(obj)
	assert.True(t, ok)
	assert.Equal(t, ClientID(7), owner)
}

func TestDerivedChecksDelegateToOwnership(t *testing.T) {
	m, obj, _ := setup(t, 7)

	assert.True(t, m.CanModifyProperty(obj, 7, "Health"))
	assert.False(t, m.CanModifyProperty(obj, 8, "Health"))
	assert.True(t, m.CanInvokeRPC(obj, 7, "Fire"))
	assert.False(t, m.CanInvokeRPC(obj, 8, "Fire"))
}

func TestObjectWithoutOwnerFieldIsServerOwned(t *testing.T) {
	m, _, _ := setup(t, 7)
	crate := marshal.NewDynamicObject(&marshal.ClassDesc{Name: "Crate"})

	owner, ok := m.Owner(crate)
	assert.False(t, ok)
	assert.Equal(t, Server, owner)
	assert.True(t, m.HasAuthority(crate, Server))
}

func TestRequestSetOwner(t *testing.T) {
	m, obj, rec := setup(t, 7)

	require.NoError(t, m.RequestSetOwner(obj, 9, 7))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, call{ReducerSetOwner, `{"object_id":42,"new_owner":9}`}, rec.calls[0])

	owner, _ := m.Owner(obj)
	assert.Equal(t, ClientID(7), owner, "ownership changes only when the server replicates it")
}

func TestRequestSetOwnerDeniedWithoutTransport(t *testing.T) {
	m, obj, rec := setup(t, 7)

	err := m.RequestSetOwner(obj, 8, 8)
	assert.ErrorIs(t, err, ErrAuthorityDenied)
	assert.Empty(t, rec.calls)
}

func TestServerOwnedNeverClientWritable(t *testing.T) {
	m, obj, rec := setup(t, 0)

	assert.ErrorIs(t, m.RequestSetOwner(obj, 5, Server), ErrAuthorityDenied)
	assert.ErrorIs(t, m.RequestSetProperty(obj, "Health", value.Float(1), Server), ErrAuthorityDenied)
	assert.ErrorIs(t, m.RequestInvoke(obj, "Fire", "", Server), ErrAuthorityDenied)
	assert.Empty(t, rec.calls)
}

func TestRequestRejectedByTransport(t *testing.T) {
	m, obj, rec := setup(t, 7)
	rec.accept = false

	assert.ErrorIs(t, m.RequestSetOwner(obj, 9, 7), ErrRejected)
	assert.ErrorIs(t, m.RequestSetProperty(obj, "Health", value.Float(10), 7), ErrRejected)
	assert.Equal(t, float32(0), obj.Get("Health"), "rejected writes are not applied")
}

func TestRequestSetProperty(t *testing.T) {
	m, obj, rec := setup(t, 7)

	require.NoError(t, m.RequestSetProperty(obj, "Health", value.Float(55.5), 7))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, ReducerSetProperty, rec.calls[0].Reducer)
	assert.JSONEq(t,
		`{"object_id":42,"property":"Health","value":{"type":"Float","value":55.5}}`,
		rec.calls[0].Args)
	assert.Equal(t, float32(55.5), obj.Get("Health"))

	assert.ErrorIs(t, m.RequestSetProperty(obj, "Health", value.Float(1), 8), ErrAuthorityDenied)
}

func TestRequestSetPropertyChecksTypeBeforeSending(t *testing.T) {
	m, obj, rec := setup(t, 7)

	err := m.RequestSetProperty(obj, "Health", value.String("not a float"), 7)
	assert.ErrorIs(t, err, marshal.ErrTypeMismatch)
	assert.ErrorIs(t, m.RequestSetProperty(obj, "Armor", value.Float(1), 7), marshal.ErrUnknownProperty)
	assert.Empty(t, rec.calls)
	assert.Equal(t, float32(0), obj.Get("Health"))
}

func TestOwnerOutsideClientRange(t *testing.T) {
	class := &marshal.ClassDesc{
		Name:   "Beacon",
		Fields: []marshal.FieldDesc{{Name: DefaultOwnerField, Type: marshal.UInt64Type}},
	}
	obj := marshal.NewDynamicObject(class)
	acc, _ := obj.Property(DefaultOwnerField)
	m := New(marshal.New(), registry.New(), &recorder{})

	require.NoError(t, acc.Set(uint64(12)))
	owner, ok := m.Owner(obj)
	assert.True(t, ok)
	assert.Equal(t, ClientID(12), owner)

	require.NoError(t, acc.Set(uint64(math.MaxInt64)+1))
	owner, ok = m.Owner(obj)
	assert.False(t, ok)
	assert.Equal(t, Server, owner)
	assert.False(t, m.HasAuthority(obj, ClientID(math.MinInt64)))
}

func TestRequestInvoke(t *testing.T) {
	m, obj, rec := setup(t, 7)

	require.NoError(t, m.RequestInvoke(obj, "Fire", `{"power": 3}`, 7))
	require.NoError(t, m.RequestInvoke(obj, "Reload", "", 7))
	require.Len(t, rec.calls, 2)
	assert.Equal(t, call{ReducerInvoke, `{"object_id":42,"function":"Fire","args":{"power":3}}`}, rec.calls[0])
	assert.Equal(t, call{ReducerInvoke, `{"object_id":42,"function":"Reload","args":{}}`}, rec.calls[1])

	assert.ErrorIs(t, m.RequestInvoke(obj, "Fire", `{bad`, 7), ErrInvalidArgs)
}

func TestRequestOnUnregisteredObject(t *testing.T) {
	m, _, rec := setup(t, 7)
	loose := marshal.NewDynamicObject(pawnClass)
	acc, _ := loose.Property(DefaultOwnerField)
	require.NoError(t, acc.Set(int64(7)))

	assert.ErrorIs(t, m.RequestSetOwner(loose, 1, 7), ErrUnregistered)
	assert.Empty(t, rec.calls)
}

func TestCustomPolicy(t *testing.T) {
	reg := registry.New()
	obj := marshal.NewDynamicObject(pawnClass)
	acc, _ := obj.Property(DefaultOwnerField)
	require.NoError(t, acc.Set(int64(7)))
	require.NoError(t, reg.Register(1, obj))

	readOnlyHealth := func(owner, client ClientID, o marshal.Object, a Action) bool {
		if a.Kind == ActionModifyProperty && a.Name == "Health" {
			return false
		}
		return OwnerOnly(owner, client, o, a)
	}
	m := New(marshal.New(), reg, &recorder{accept: true}, WithPolicy(readOnlyHealth))

	assert.False(t, m.CanModifyProperty(obj, 7, "Health"))
	assert.True(t, m.CanInvokeRPC(obj, 7, "Fire"))
	assert.True(t, m.HasAuthority(obj, 7), "policy does not change ownership")
}

func TestOwnerFieldOption(t *testing.T) {
	class := &marshal.ClassDesc{
		Name:   "Drone",
		Fields: []marshal.FieldDesc{{Name: "Pilot", Type: marshal.Int32Type}},
	}
	obj := marshal.NewDynamicObject(class)
	acc, _ := obj.Property("Pilot")
	require.NoError(t, acc.Set(int32(3)))

	m := New(marshal.New(), registry.New(), &recorder{}, WithOwnerField("Pilot"))
	assert.Equal(t, "Pilot", m.OwnerField())
	assert.True(t, m.HasAuthority(obj, 3))
}
