package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/value"
)

func TestCreateAppliesSnapshot(t *testing.T) {
	f := newFixture(t)
	pawn := f.createPawn(t, 10, 3)

	assert.Equal(t, int64(3), pawn.Get("OwnerClientId"))
	assert.Equal(t, float32(100), pawn.Get("Health"))

	e, ok := f.s.Registry().Entry(10)
	require.True(t, ok)
	assert.Equal(t, registry.StateCreated, e.State)
	assert.True(t, e.Replicate)
}

func TestCreateWithoutData(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.processEvent(t.Context(), CreateEvent(11, "Sign", nil)))

	e, ok := f.s.Registry().Entry(11)
	require.True(t, ok)
	assert.False(t, e.Replicate, "Sign does not replicate")
}

func TestPropertyUpdateNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	pawn := f.createPawn(t, 10, 3)

	var changed []string
	pawn.OnChange(func(name string) { changed = append(changed, name) })

	err := f.s.processEvent(t.Context(), PropertyEvent(10, "Health", value.MustMarshal(value.Float(50))))
	require.NoError(t, err)
	assert.Equal(t, float32(50), pawn.Get("Health"))
	assert.Equal(t, []string{"Health"}, changed)
}

func TestObjectReferenceResolvesThroughRegistry(t *testing.T) {
	f := newFixture(t)
	pawn := f.createPawn(t, 10, 3)
	other := f.createPawn(t, 11, 3)

	err := f.s.processEvent(t.Context(), PropertyEvent(10, "Target", value.MustMarshal(value.ObjectRef(11))))
	require.NoError(t, err)
	assert.Same(t, other, pawn.Get("Target"))
}

func TestInboundErrors(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		code ErrorCode
	}{
		{"unknown id", PropertyEvent(99, "Health", value.MustMarshal(value.Float(1))), ErrCodeUnknownID},
		{"type mismatch", PropertyEvent(10, "Health", value.MustMarshal(value.Bool(true))), ErrCodeTypeMismatch},
		{"malformed payload", PropertyEvent(10, "Health", []byte(`{"type":"Float"}`)), ErrCodeMalformedEvent},
		{"unknown property", PropertyEvent(10, "Mana", value.MustMarshal(value.Float(1))), ErrCodeUnknownProperty},
		{"unresolved reference", PropertyEvent(10, "Target", value.MustMarshal(value.ObjectRef(555))), ErrCodeUnresolvedReference},
		{"unknown class", CreateEvent(20, "Dragon", nil), ErrCodeUnknownClass},
		{"duplicate create", CreateEvent(10, "Pawn", nil), ErrCodeAlreadyRegistered},
		{"malformed snapshot", CreateEvent(21, "Pawn", []byte(`[1]`)), ErrCodeMalformedEvent},
		{"destroy unknown", DestroyEvent(99), ErrCodeUnknownID},
		{"remap unknown temp", RemapEvent(12345, 500), ErrCodeUnknownID},
		{"movement unknown", MovementEvent(99, Movement{Transform: at(0, 0, 0)}), ErrCodeUnknownID},
		{"movement missing", Event{Type: EventMovement, ObjectID: 10}, ErrCodeMalformedEvent},
		{"task missing", Event{Type: EventTask}, ErrCodeMalformedEvent},
		{"unknown type", Event{Type: EventType(99)}, ErrCodeMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			pawn := f.createPawn(t, 10, 3)

			err := f.s.processEvent(t.Context(), tt.ev)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err), "error: %v", err)
			assert.Equal(t, float32(100), pawn.Get("Health"), "failed events leave state untouched")
		})
	}
}

func TestDestroyIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.createPawn(t, 10, 3)

	require.NoError(t, f.s.processEvent(t.Context(), DestroyEvent(10)))
	_, ok := f.s.Registry().FindByID(10)
	assert.False(t, ok)

	err := f.s.processEvent(t.Context(), CreateEvent(10, "Pawn", nil))
	assert.True(t, IsCode(err, ErrCodeAlreadyRegistered), "destroyed ids are never reused")
}

func TestRemapConflicts(t *testing.T) {
	f := newFixture(t)
	f.createPawn(t, 500, 3)
	temp, _, err := f.s.Spawn("Pawn")
	require.NoError(t, err)

	err = f.s.processEvent(t.Context(), RemapEvent(uint64(temp), 500))
	assert.True(t, IsCode(err, ErrCodeRemapConflict), "server id taken: %v", err)

	require.NoError(t, f.s.processEvent(t.Context(), RemapEvent(uint64(temp), 501)))
	err = f.s.processEvent(t.Context(), RemapEvent(uint64(temp), 502))
	assert.True(t, IsCode(err, ErrCodeRemapConflict), "second remap: %v", err)
}

func TestMovementForUncontrolledObjectAppliesDirectly(t *testing.T) {
	f := newFixture(t)
	pawn := f.createPawn(t, 10, 3)

	m := Movement{Transform: at(5, 6, 7), Velocity: value.Vector3{X: 1}}
	require.NoError(t, f.s.processEvent(t.Context(), MovementEvent(10, m)))
	assert.Equal(t, at(5, 6, 7), pawn.Get("Transform"))
	assert.Equal(t, value.Vector3{X: 1}, pawn.Get("Velocity"))
}

func TestMovementRequiresMovementFields(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.processEvent(t.Context(), CreateEvent(11, "Sign", nil)))

	err := f.s.processEvent(t.Context(), MovementEvent(11, Movement{Transform: at(1, 0, 0)}))
	assert.True(t, IsCode(err, ErrCodeUnknownProperty), "%v", err)
}

func TestTaskRunsOnControlThread(t *testing.T) {
	f := newFixture(t)
	var got *Session
	f.s.Enqueue(TaskEvent(func(s *Session) { got = s }))
	assert.Equal(t, 1, f.s.Drain(t.Context()))
	assert.Same(t, f.s, got)
}

func TestDrainHandlesEventsEnqueuedWhileDraining(t *testing.T) {
	f := newFixture(t)
	f.s.Enqueue(TaskEvent(func(s *Session) {
		s.Enqueue(CreateEvent(10, "Pawn", nil))
	}))
	assert.Equal(t, 2, f.s.Drain(t.Context()))
	assert.Equal(t, 1, f.s.Registry().Len())
}
