package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSession returns the session with the given id.
// Returns ErrSessionNotFound if it does not exist.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, started_seq, label FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.ClientID, &sess.StartedSeq, &sess.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("get session %q: %w", id, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by id.
// UUIDv7 ids sort by creation time.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, started_seq, label
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ClientID, &sess.StartedSeq, &sess.Label); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEvents returns every event of a session in journal order.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]EventRecord, error) {
	return s.ReadEventsAfter(ctx, sessionID, 0)
}

// ReadEventsAfter returns the events of a session with seq > afterSeq.
func (s *Store) ReadEventsAfter(ctx context.Context, sessionID string, afterSeq int64) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, object_id, aux_id, name, payload
		FROM events
		WHERE session_id = ? AND seq > ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadReconciliations returns every reconciliation of a session in seq order.
func (s *Store) ReadReconciliations(ctx context.Context, sessionID string) ([]ReconciliationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, object_id, seq, acked_sequence, outcome,
		       position_error, rotation_error, velocity_error, discarded
		FROM reconciliations
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query reconciliations: %w", err)
	}
	defer rows.Close()

	out := []ReconciliationRecord{}
	for rows.Next() {
		var (
			rec           ReconciliationRecord
			objectID, ack int64
		)
		err := rows.Scan(&rec.ID, &rec.SessionID, &objectID, &rec.Seq, &ack, &rec.Outcome,
			&rec.PositionError, &rec.RotationError, &rec.VelocityError, &rec.Discarded)
		if err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		rec.ObjectID = fromSQLID(objectID)
		rec.AckedSequence = fromSQLID(ack)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciliations: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest seq journaled for a session, or 0.
func (s *Store) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE session_id = ?
	`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvent(rows *sql.Rows) (EventRecord, error) {
	var (
		rec             EventRecord
		objectID, auxID int64
	)
	err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Seq, &rec.Kind, &objectID, &auxID, &rec.Name, &rec.Payload)
	if err != nil {
		return EventRecord{}, fmt.Errorf("scan event: %w", err)
	}
	rec.ObjectID = fromSQLID(objectID)
	rec.AuxID = fromSQLID(auxID)
	return rec, nil
}
