package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/value"
)

func replayFactory(t *testing.T) *Factory {
	t.Helper()
	f := NewFactory()
	require.NoError(t, f.RegisterClass(pawnClass))
	require.NoError(t, f.RegisterClass(signClass))
	return f
}

func TestReplayReproducesLiveState(t *testing.T) {
	journal := openJournal(t)
	f := newFixture(t, WithJournal(journal))
	ctx := t.Context()

	f.createPawn(t, 10, localClient)
	f.createPawn(t, 11, 3)
	f.s.Enqueue(CreateEvent(12, "Sign", snapshot(t, map[string]value.Value{"Label": value.String("spawn")})))
	f.s.Enqueue(PropertyEvent(11, "Target", value.MustMarshal(value.ObjectRef(10))))
	f.s.Drain(ctx)

	temp, _, err := f.s.Spawn("Pawn")
	require.NoError(t, err)
	f.s.Enqueue(RemapEvent(uint64(temp), 600))
	f.s.Drain(ctx)

	require.NoError(t, f.s.SetProperty(600, "Health", value.Float(42)))
	require.NoError(t, f.s.Destroy(10))
	f.s.Enqueue(MovementEvent(11, Movement{Transform: at(3, 4, 5), Velocity: value.Vector3{X: 1}}))
	f.s.Enqueue(DestroyEvent(12))
	f.s.Drain(ctx)

	live, err := f.s.StateDigest()
	require.NoError(t, err)

	records, err := journal.ReadEvents(ctx, "test-session")
	require.NoError(t, err)

	first, err := Replay(ctx, localClient, records, replayFactory(t))
	require.NoError(t, err)
	assert.Equal(t, len(records), first.Events)
	assert.Zero(t, first.Failed)

	second, err := Replay(ctx, localClient, records, replayFactory(t))
	require.NoError(t, err)

	a, err := first.Session.StateDigest()
	require.NoError(t, err)
	b, err := second.Session.StateDigest()
	require.NoError(t, err)
	assert.Equal(t, a, b, "replay is deterministic")
	assert.Equal(t, live, a, "replay reproduces the live registry")

	obj, ok := first.Session.Registry().FindByID(600)
	require.True(t, ok)
	id, _ := first.Session.Registry().FindID(obj)
	assert.Equal(t, registry.ID(600), id)
	assert.True(t, first.Session.Registry().IsDestroyed(10))
}

func TestReplayPendingSpawn(t *testing.T) {
	journal := openJournal(t)
	f := newFixture(t, WithJournal(journal))

	temp, _, err := f.s.Spawn("Pawn")
	require.NoError(t, err)

	pending, err := journal.GetPendingSpawns(t.Context(), "test-session")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(temp), pending[0].AuxID)

	records, err := journal.ReadEvents(t.Context(), "test-session")
	require.NoError(t, err)
	res, err := Replay(t.Context(), localClient, records, replayFactory(t))
	require.NoError(t, err)

	e, ok := res.Session.Registry().Entry(temp)
	require.True(t, ok)
	assert.Equal(t, registry.StatePending, e.State)
}

func TestReplayCountsFailures(t *testing.T) {
	records := []store.EventRecord{
		{Seq: 1, Kind: store.KindProperty, ObjectID: 5, Name: "Health", Payload: `{"type":"Float","value":1}`},
		{Seq: 2, Kind: store.KindCall, Name: "destroy_object", ObjectID: 5, Payload: `{"object_id":5}`},
		{Seq: 3, Kind: store.KindCall, Name: "invoke", ObjectID: 5, Payload: `{}`},
	}
	res, err := Replay(t.Context(), localClient, records, replayFactory(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Events)
	assert.Equal(t, 2, res.Failed)
}

func TestReplayRejectsUnknownKind(t *testing.T) {
	records := []store.EventRecord{{Seq: 1, Kind: "teleport"}}
	_, err := Replay(t.Context(), localClient, records, replayFactory(t))
	assert.True(t, IsCode(err, ErrCodeMalformedEvent))
}

func TestEventFromRecordMovement(t *testing.T) {
	payload, err := encodeMovement(Movement{Transform: at(1, 2, 3), AckedSequence: 9})
	require.NoError(t, err)

	ev, err := EventFromRecord(store.EventRecord{Kind: store.KindMovement, ObjectID: 4, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, EventMovement, ev.Type)
	require.NotNil(t, ev.Movement)
	assert.Equal(t, at(1, 2, 3), ev.Movement.Transform)
	assert.Equal(t, uint64(9), ev.Movement.AckedSequence)

	_, err = EventFromRecord(store.EventRecord{Kind: store.KindMovement, Payload: "{"})
	assert.True(t, IsCode(err, ErrCodeMalformedEvent))
}

func TestStateDigestChangesWithState(t *testing.T) {
	f := newFixture(t)
	empty, err := f.s.StateDigest()
	require.NoError(t, err)

	f.createPawn(t, 10, localClient)
	one, err := f.s.StateDigest()
	require.NoError(t, err)
	assert.NotEqual(t, empty, one)

	f.s.Enqueue(PropertyEvent(10, "Health", value.MustMarshal(value.Float(1))))
	f.s.Drain(t.Context())
	two, err := f.s.StateDigest()
	require.NoError(t, err)
	assert.NotEqual(t, one, two)
}
