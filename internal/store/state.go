package store

import (
	"context"
	"fmt"
)

// SessionState summarizes a session journal for recovery and diagnostics.
type SessionState struct {
	SessionID string
	Events    int
	LastSeq   int64

	// PendingSpawns lists calls that carry a temp id with no remap
	// recorded for it yet.
	PendingSpawns []EventRecord

	// Outcomes counts reconciliations by outcome.
	Outcomes map[string]int

	// IsSettled is true when every spawn has been confirmed.
	IsSettled bool
}

// GetSessionState returns the journal summary of a session.
func (s *Store) GetSessionState(ctx context.Context, sessionID string) (SessionState, error) {
	state := SessionState{
		SessionID: sessionID,
		Outcomes:  map[string]int{},
	}

	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}

	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.Events = len(events)
	if len(events) > 0 {
		state.LastSeq = events[len(events)-1].Seq
	}

	pending, err := s.GetPendingSpawns(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	state.PendingSpawns = pending
	state.IsSettled = len(pending) == 0

	recs, err := s.ReadReconciliations(ctx, sessionID)
	if err != nil {
		return state, fmt.Errorf("get session state: %w", err)
	}
	for _, rec := range recs {
		state.Outcomes[rec.Outcome]++
	}

	return state, nil
}

// GetPendingSpawns returns the call events of a session whose temp id
// (AuxID) was never remapped. Ordered by seq ASC, id ASC.
func (s *Store) GetPendingSpawns(ctx context.Context, sessionID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.session_id, c.seq, c.kind, c.object_id, c.aux_id, c.name, c.payload
		FROM events c
		LEFT JOIN events r
		  ON r.session_id = c.session_id AND r.kind = ? AND r.aux_id = c.aux_id
		WHERE c.session_id = ? AND c.kind = ? AND c.aux_id != 0 AND r.id IS NULL
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, KindRemap, sessionID, KindCall)
	if err != nil {
		return nil, fmt.Errorf("get pending spawns: %w", err)
	}
	defer rows.Close()

	out := []EventRecord{}
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending spawns: %w", err)
	}
	return out, nil
}

// FindUnsettledSessions returns the ids of sessions with pending spawns.
func (s *Store) FindUnsettledSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.session_id
		FROM events c
		LEFT JOIN events r
		  ON r.session_id = c.session_id AND r.kind = ? AND r.aux_id = c.aux_id
		WHERE c.kind = ? AND c.aux_id != 0 AND r.id IS NULL
		ORDER BY c.session_id COLLATE BINARY ASC
	`, KindRemap, KindCall)
	if err != nil {
		return nil, fmt.Errorf("find unsettled sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session ids: %w", err)
	}
	return ids, nil
}
