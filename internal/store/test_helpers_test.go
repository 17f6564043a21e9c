package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session row and returns it.
func createTestSession(t *testing.T, s *Store, id string) Session {
	t.Helper()
	sess := Session{ID: id, ClientID: 1}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}

func propertyEvent(session string, seq int64, object uint64, name, payload string) EventRecord {
	return EventRecord{
		SessionID: session,
		Seq:       seq,
		Kind:      KindProperty,
		ObjectID:  object,
		Name:      name,
		Payload:   payload,
	}
}
