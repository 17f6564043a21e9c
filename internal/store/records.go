package store

import (
	"errors"

	"github.com/roach88/netsync/internal/value"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Event kinds recorded in the journal.
const (
	KindProperty = "property"
	KindCreate   = "create"
	KindDestroy  = "destroy"
	KindRemap    = "remap"
	KindMovement = "movement"
	KindCall     = "call"
)

// Session is one client session.
type Session struct {
	ID         string `json:"id"`
	ClientID   int64  `json:"client_id"`
	StartedSeq int64  `json:"started_seq"`
	Label      string `json:"label,omitempty"`
}

// EventRecord is one journaled event.
//
// ObjectID is the subject object. AuxID carries the second id of kinds
// that have one (the temp id of a remap or spawn call). Name is the
// property, class or reducer name. Payload holds the JSON body verbatim.
type EventRecord struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	ObjectID  uint64 `json:"object_id,omitempty"`
	AuxID     uint64 `json:"aux_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Payload   string `json:"payload,omitempty"`
}

// ReconciliationRecord is the outcome of one server correction.
type ReconciliationRecord struct {
	ID            string  `json:"id"`
	SessionID     string  `json:"session_id"`
	ObjectID      uint64  `json:"object_id"`
	Seq           int64   `json:"seq"`
	AckedSequence uint64  `json:"acked_sequence"`
	Outcome       string  `json:"outcome"`
	PositionError float64 `json:"position_error"`
	RotationError float64 `json:"rotation_error"`
	VelocityError float64 `json:"velocity_error"`
	Discarded     int     `json:"discarded"`
}

// EventID computes the content-addressed id of an event record.
// The ID field itself is not part of the hash.
func EventID(rec EventRecord) (string, error) {
	return value.ContentID(value.DomainEvent, map[string]any{
		"session_id": rec.SessionID,
		"seq":        rec.Seq,
		"kind":       rec.Kind,
		"object_id":  rec.ObjectID,
		"aux_id":     rec.AuxID,
		"name":       rec.Name,
		"payload":    rec.Payload,
	})
}

// ReconciliationID computes the content-addressed id of a reconciliation.
func ReconciliationID(rec ReconciliationRecord) (string, error) {
	return value.ContentID(value.DomainReconciliation, map[string]any{
		"session_id":     rec.SessionID,
		"object_id":      rec.ObjectID,
		"seq":            rec.Seq,
		"acked_sequence": rec.AckedSequence,
		"outcome":        rec.Outcome,
		"position_error": rec.PositionError,
		"rotation_error": rec.RotationError,
		"velocity_error": rec.VelocityError,
		"discarded":      rec.Discarded,
	})
}

// Object ids are uint64 on the wire; SQLite integers are signed, so ids
// with the high bit set are stored in two's complement.
func toSQLID(id uint64) int64   { return int64(id) }
func fromSQLID(id int64) uint64 { return uint64(id) }
