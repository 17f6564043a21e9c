package store

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImport_RoundTrip(t *testing.T) {
	src := createTestStore(t)
	sess := createTestSession(t, src, "s1")

	for _, rec := range []EventRecord{
		{SessionID: "s1", Seq: 1, Kind: KindCreate, ObjectID: 7, Name: "Pawn", Payload: `{"Health":{"type":"Float","value":100}}`},
		propertyEvent("s1", 2, 7, "Health", `{"type":"Float","value":50}`),
		{SessionID: "s1", Seq: 3, Kind: KindDestroy, ObjectID: 7},
	} {
		_, _, err := src.WriteEvent(t.Context(), rec)
		require.NoError(t, err)
	}
	_, err := src.WriteReconciliation(t.Context(), ReconciliationRecord{SessionID: "s1", ObjectID: 7, Seq: 2, Outcome: "fallback"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.Export(t.Context(), &buf, "s1"))

	dst, err := Open(filepath.Join(t.TempDir(), "copy.db"))
	require.NoError(t, err)
	defer dst.Close()

	got, err := dst.Import(t.Context(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	want, err := src.ReadEvents(t.Context(), "s1")
	require.NoError(t, err)
	have, err := dst.ReadEvents(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, want, have)

	recs, err := dst.ReadReconciliations(t.Context(), "s1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fallback", recs[0].Outcome)

	// Importing again is a no-op.
	_, err = dst.Import(t.Context(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	have, err = dst.ReadEvents(t.Context(), "s1")
	require.NoError(t, err)
	assert.Len(t, have, 3)
}

func TestExport_UnknownSession(t *testing.T) {
	s := createTestStore(t)
	var buf bytes.Buffer
	assert.ErrorIs(t, s.Export(t.Context(), &buf, "missing"), ErrSessionNotFound)
}

func compress(t *testing.T, lines string) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(lines))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines string
	}{
		{"no header", ""},
		{"record before header", `{"event":{"session_id":"s1","seq":1,"kind":"destroy"}}` + "\n"},
		{"second header", `{"session":{"id":"s1"}}` + "\n" + `{"session":{"id":"s2"}}` + "\n"},
		{"empty entry", `{"session":{"id":"s1"}}` + "\n{}\n"},
		{"bad json", "{\n"},
		{"tampered id", `{"session":{"id":"s1"}}` + "\n" + `{"event":{"id":"abc","session_id":"s1","seq":1,"kind":"destroy"}}` + "\n"},
		{"foreign session", `{"session":{"id":"s1"}}` + "\n" + `{"event":{"session_id":"s2","seq":1,"kind":"destroy"}}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t)
			_, err := s.Import(t.Context(), bytes.NewReader(compress(t, tt.lines)))
			assert.Error(t, err)
		})
	}
}

func TestImport_NotZstd(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Import(t.Context(), bytes.NewReader([]byte("plain text")))
	assert.Error(t, err)
}
