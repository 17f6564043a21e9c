package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// exportLine is one JSONL entry of an export. Exactly one field is set.
type exportLine struct {
	Session        *Session              `json:"session,omitempty"`
	Event          *EventRecord          `json:"event,omitempty"`
	Reconciliation *ReconciliationRecord `json:"reconciliation,omitempty"`
}

// Export writes a session as zstd-compressed JSON lines: the session row
// first, then its events, then its reconciliations, each in seq order.
func (s *Store) Export(ctx context.Context, w io.Writer, sessionID string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	recs, err := s.ReadReconciliations(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 128*1024)
	je := json.NewEncoder(bw)
	je.SetEscapeHTML(false)

	write := func(line exportLine) error {
		if err := je.Encode(line); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		return nil
	}

	if err := write(exportLine{Session: &sess}); err != nil {
		_ = enc.Close()
		return err
	}
	for i := range events {
		if err := write(exportLine{Event: &events[i]}); err != nil {
			_ = enc.Close()
			return err
		}
	}
	for i := range recs {
		if err := write(exportLine{Reconciliation: &recs[i]}); err != nil {
			_ = enc.Close()
			return err
		}
	}

	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return fmt.Errorf("export: flush: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export: close: %w", err)
	}
	return nil
}

// Import reads an export produced by Export and writes it into the store.
// Records already present are skipped, so importing twice is harmless.
// Event ids are recomputed and must match the exported ones.
func (s *Store) Import(ctx context.Context, r io.Reader) (Session, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return Session{}, fmt.Errorf("import: %w", err)
	}
	defer dec.Close()

	var sess *Session
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var entry exportLine
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return Session{}, fmt.Errorf("import: line %d: %w", line, err)
		}

		switch {
		case entry.Session != nil:
			if sess != nil {
				return Session{}, fmt.Errorf("import: line %d: second session header", line)
			}
			sess = entry.Session
			if err := s.WriteSession(ctx, *sess); err != nil {
				return Session{}, fmt.Errorf("import: %w", err)
			}
		case sess == nil:
			return Session{}, fmt.Errorf("import: line %d: record before session header", line)
		case entry.Event != nil:
			if err := s.importEvent(ctx, sess.ID, *entry.Event); err != nil {
				return Session{}, fmt.Errorf("import: line %d: %w", line, err)
			}
		case entry.Reconciliation != nil:
			rec := *entry.Reconciliation
			rec.SessionID = sess.ID
			if _, err := s.WriteReconciliation(ctx, rec); err != nil {
				return Session{}, fmt.Errorf("import: line %d: %w", line, err)
			}
		default:
			return Session{}, fmt.Errorf("import: line %d: empty entry", line)
		}
	}
	if err := sc.Err(); err != nil {
		return Session{}, fmt.Errorf("import: %w", err)
	}
	if sess == nil {
		return Session{}, errors.New("import: no session header")
	}
	return *sess, nil
}

func (s *Store) importEvent(ctx context.Context, sessionID string, rec EventRecord) error {
	if rec.SessionID != sessionID {
		return fmt.Errorf("event %s belongs to session %q", rec.ID, rec.SessionID)
	}
	want := rec.ID
	rec.ID = ""
	id, err := EventID(rec)
	if err != nil {
		return err
	}
	if want != "" && want != id {
		return fmt.Errorf("event id mismatch: exported %s, computed %s", want, id)
	}
	rec.ID = id
	_, _, err = s.WriteEvent(ctx, rec)
	return err
}
