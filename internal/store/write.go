package store

import (
	"context"
	"fmt"
)

// WriteSession inserts a session row.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("write session: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, client_id, started_seq, label)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.ClientID, sess.StartedSeq, sess.Label)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends an event to the journal and returns its id and
// whether a new row was inserted.
//
// An empty ID is filled with the content-addressed EventID. Writing the
// same record twice, or a second record at an occupied (session, seq),
// is silently ignored and reports inserted=false.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, rec EventRecord) (id string, inserted bool, err error) {
	if rec.ID == "" {
		rec.ID, err = EventID(rec)
		if err != nil {
			return "", false, fmt.Errorf("write event: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(id, session_id, seq, kind, object_id, aux_id, name, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.SessionID,
		rec.Seq,
		rec.Kind,
		toSQLID(rec.ObjectID),
		toSQLID(rec.AuxID),
		rec.Name,
		rec.Payload,
	)
	if err != nil {
		return "", false, fmt.Errorf("write event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write event: rows affected: %w", err)
	}
	return rec.ID, n > 0, nil
}

// WriteReconciliation records a reconciliation outcome.
// An empty ID is filled with the content-addressed ReconciliationID.
func (s *Store) WriteReconciliation(ctx context.Context, rec ReconciliationRecord) (string, error) {
	if rec.ID == "" {
		id, err := ReconciliationID(rec)
		if err != nil {
			return "", fmt.Errorf("write reconciliation: %w", err)
		}
		rec.ID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliations
		(id, session_id, object_id, seq, acked_sequence, outcome,
		 position_error, rotation_error, velocity_error, discarded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.SessionID,
		toSQLID(rec.ObjectID),
		rec.Seq,
		toSQLID(rec.AckedSequence),
		rec.Outcome,
		rec.PositionError,
		rec.RotationError,
		rec.VelocityError,
		rec.Discarded,
	)
	if err != nil {
		return "", fmt.Errorf("write reconciliation: %w", err)
	}
	return rec.ID, nil
}
