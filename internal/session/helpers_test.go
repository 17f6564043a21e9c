package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/testutil"
	"github.com/roach88/netsync/internal/value"
)

const localClient = 7

var pawnClass = &marshal.ClassDesc{
	Name:      "Pawn",
	Replicate: true,
	Fields: []marshal.FieldDesc{
		{Name: "OwnerClientId", Type: marshal.Int64Type},
		{Name: "Health", Type: marshal.FloatType, Notify: true},
		{Name: "Transform", Type: marshal.TransformType},
		{Name: "Velocity", Type: marshal.VectorType},
		{Name: "Target", Type: marshal.ObjectRefType},
	},
}

var signClass = &marshal.ClassDesc{
	Name:   "Sign",
	Fields: []marshal.FieldDesc{{Name: "Label", Type: marshal.StringType}},
}

type fixture struct {
	s      *Session
	caller *testutil.RecordingCaller
	clock  *testutil.ManualClock
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	factory := NewFactory()
	require.NoError(t, factory.RegisterClass(pawnClass))
	require.NoError(t, factory.RegisterClass(signClass))

	caller := testutil.NewRecordingCaller()
	clock := testutil.NewManualClock(time.Time{})
	all := append([]Option{WithID("test-session"), WithNow(clock.Now)}, opts...)
	s, err := New(localClient, factory, caller, all...)
	require.NoError(t, err)
	return &fixture{s: s, caller: caller, clock: clock}
}

func openJournal(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func snapshot(t *testing.T, values map[string]value.Value) []byte {
	t.Helper()
	data, err := marshal.EncodeSnapshot(values)
	require.NoError(t, err)
	return data
}

func at(x, y, z float64) value.Transform {
	tr := value.IdentityTransform()
	tr.Location = value.Vector3{X: x, Y: y, Z: z}
	return tr
}

// createPawn delivers a server create for a pawn owned by owner.
func (f *fixture) createPawn(t *testing.T, id uint64, owner int64) *marshal.DynamicObject {
	t.Helper()
	f.s.Enqueue(CreateEvent(id, "Pawn", snapshot(t, map[string]value.Value{
		"OwnerClientId": value.Int64(owner),
		"Health":        value.Float(100),
	})))
	f.s.Drain(t.Context())
	obj, ok := f.s.Registry().FindByID(registry.ID(id))
	require.True(t, ok, "pawn %d not registered", id)
	return obj.(*marshal.DynamicObject)
}
