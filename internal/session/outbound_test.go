package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/value"
)

func TestSpawnRemapScenario(t *testing.T) {
	f := newFixture(t)

	temp, obj, err := f.s.Spawn("Pawn")
	require.NoError(t, err)
	assert.Equal(t, registry.DefaultTempIDBase, temp)

	pawn := obj.(*marshal.DynamicObject)
	assert.Equal(t, int64(localClient), pawn.Get("OwnerClientId"), "spawner owns the object")

	call, ok := f.caller.Last()
	require.True(t, ok)
	assert.Equal(t, authority.ReducerSpawn, call.Reducer)

	var args struct {
		TempID uint64                     `json:"temp_id"`
		Class  string                     `json:"class"`
		Data   map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(call.Args), &args))
	assert.Equal(t, uint64(temp), args.TempID)
	assert.Equal(t, "Pawn", args.Class)
	assert.JSONEq(t, `{"type":"Int64","value":7}`, string(args.Data["OwnerClientId"]))

	e, ok := f.s.Registry().Entry(temp)
	require.True(t, ok)
	assert.Equal(t, registry.StatePending, e.State)

	require.NoError(t, f.s.processEvent(t.Context(), RemapEvent(uint64(temp), 500)))

	found, ok := f.s.Registry().FindByID(500)
	require.True(t, ok)
	assert.Same(t, obj, found)
	_, ok = f.s.Registry().FindByID(temp)
	assert.False(t, ok, "temp id is invalid after remap")

	id, ok := f.s.Registry().FindID(obj)
	require.True(t, ok)
	assert.Equal(t, registry.ID(500), id)
}

func TestSpawnRejectedLeavesNoRegistration(t *testing.T) {
	f := newFixture(t)
	f.caller.Reject(authority.ReducerSpawn)

	_, _, err := f.s.Spawn("Pawn")
	assert.True(t, IsCode(err, ErrCodeRejected), "%v", err)
	assert.Zero(t, f.s.Registry().Len())
}

func TestSpawnUnknownClass(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.s.Spawn("Dragon")
	assert.True(t, IsCode(err, ErrCodeUnknownClass))
	assert.Empty(t, f.caller.Calls())
}

func TestSetProperty(t *testing.T) {
	f := newFixture(t)
	mine := f.createPawn(t, 10, localClient)
	theirs := f.createPawn(t, 11, 3)

	require.NoError(t, f.s.SetProperty(10, "Health", value.Float(25)))
	assert.Equal(t, float32(25), mine.Get("Health"), "applied locally once accepted")

	call, _ := f.caller.Last()
	assert.Equal(t, authority.ReducerSetProperty, call.Reducer)
	assert.JSONEq(t, `{"object_id":10,"property":"Health","value":{"type":"Float","value":25}}`, call.Args)

	err := f.s.SetProperty(11, "Health", value.Float(1))
	assert.True(t, IsCode(err, ErrCodeAuthorityDenied))
	assert.Equal(t, float32(100), theirs.Get("Health"))
	assert.Len(t, f.caller.Calls(), 1, "denied requests never reach the transport")

	err = f.s.SetProperty(99, "Health", value.Float(1))
	assert.True(t, IsCode(err, ErrCodeUnknownID))
}

func TestSetPropertyWrongTypeNeverSent(t *testing.T) {
	f := newFixture(t)
	mine := f.createPawn(t, 5, localClient)

	err := f.s.SetProperty(5, "Health", value.String("not a float"))
	assert.True(t, IsCode(err, ErrCodeTypeMismatch))
	assert.Empty(t, f.caller.Calls())
	assert.Equal(t, float32(100), mine.Get("Health"))

	err = f.s.SetProperty(5, "Armor", value.Float(1))
	assert.True(t, IsCode(err, ErrCodeUnknownProperty))
	assert.Empty(t, f.caller.Calls())
}

func TestSetPropertyRejectedKeepsLocalValue(t *testing.T) {
	f := newFixture(t)
	mine := f.createPawn(t, 10, localClient)
	f.caller.Reject()

	err := f.s.SetProperty(10, "Health", value.Float(25))
	assert.True(t, IsCode(err, ErrCodeRejected))
	assert.Equal(t, float32(100), mine.Get("Health"))
}

func TestSetOwnerWaitsForReplication(t *testing.T) {
	f := newFixture(t)
	mine := f.createPawn(t, 10, localClient)

	require.NoError(t, f.s.SetOwner(10, 9))
	call, _ := f.caller.Last()
	assert.Equal(t, authority.ReducerSetOwner, call.Reducer)
	assert.JSONEq(t, `{"object_id":10,"new_owner":9}`, call.Args)
	assert.Equal(t, int64(localClient), mine.Get("OwnerClientId"))

	require.NoError(t, f.s.processEvent(t.Context(), PropertyEvent(10, "OwnerClientId", value.MustMarshal(value.Int64(9)))))
	err := f.s.SetOwner(10, localClient)
	assert.True(t, IsCode(err, ErrCodeAuthorityDenied), "authority is checked before the change")
}

func TestInvoke(t *testing.T) {
	f := newFixture(t)
	f.createPawn(t, 10, localClient)

	require.NoError(t, f.s.Invoke(10, "Jump", `{"height":2}`))
	call, _ := f.caller.Last()
	assert.JSONEq(t, `{"object_id":10,"function":"Jump","args":{"height":2}}`, call.Args)

	err := f.s.Invoke(10, "Jump", `{not json`)
	assert.True(t, IsCode(err, ErrCodeMalformedEvent))
}

func TestDestroy(t *testing.T) {
	f := newFixture(t)
	f.createPawn(t, 10, localClient)
	f.createPawn(t, 11, 3)

	err := f.s.Destroy(11)
	assert.True(t, IsCode(err, ErrCodeAuthorityDenied))

	require.NoError(t, f.s.Destroy(10))
	call, _ := f.caller.Last()
	assert.Equal(t, authority.ReducerDestroy, call.Reducer)
	assert.JSONEq(t, `{"object_id":10}`, call.Args)
	assert.True(t, f.s.Registry().IsDestroyed(10))
}

func TestOwnerFieldOption(t *testing.T) {
	f := newFixture(t, WithOwnerField("Health"))
	_, _, err := f.s.Spawn("Pawn")
	assert.True(t, IsCode(err, ErrCodeTypeMismatch), "float owner field: %v", err)
}
