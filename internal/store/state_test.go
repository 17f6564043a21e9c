package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSessionState(t *testing.T) {
	s := createTestStore(t)
	createTestSession(t, s, "s1")

	temp1, temp2 := uint64(1<<62), uint64(1<<62+1)
	for _, rec := range []EventRecord{
		{SessionID: "s1", Seq: 1, Kind: KindCall, AuxID: temp1, Name: "spawn_object"},
		{SessionID: "s1", Seq: 2, Kind: KindCall, AuxID: temp2, Name: "spawn_object"},
		{SessionID: "s1", Seq: 3, Kind: KindCall, ObjectID: 5, Name: "set_owner"},
		{SessionID: "s1", Seq: 4, Kind: KindRemap, ObjectID: 100, AuxID: temp1},
	} {
		_, _, err := s.WriteEvent(t.Context(), rec)
		require.NoError(t, err)
	}
	for i, outcome := range []string{"within_threshold", "corrected", "corrected"} {
		_, err := s.WriteReconciliation(t.Context(), ReconciliationRecord{
			SessionID: "s1", ObjectID: 100, Seq: int64(5 + i), Outcome: outcome,
		})
		require.NoError(t, err)
	}

	state, err := s.GetSessionState(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, state.Events)
	assert.Equal(t, int64(4), state.LastSeq)
	assert.False(t, state.IsSettled)
	require.Len(t, state.PendingSpawns, 1)
	assert.Equal(t, temp2, state.PendingSpawns[0].AuxID)
	assert.Equal(t, map[string]int{"within_threshold": 1, "corrected": 2}, state.Outcomes)

	unsettled, err := s.FindUnsettledSessions(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, unsettled)

	_, _, err = s.WriteEvent(t.Context(), EventRecord{SessionID: "s1", Seq: 6, Kind: KindRemap, ObjectID: 101, AuxID: temp2})
	require.NoError(t, err)

	state, err = s.GetSessionState(t.Context(), "s1")
	require.NoError(t, err)
	assert.True(t, state.IsSettled)
	assert.Empty(t, state.PendingSpawns)

	unsettled, err = s.FindUnsettledSessions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, unsettled)
}

func TestGetSessionState_Missing(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetSessionState(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
