package predict

import (
	"maps"
	"time"

	"github.com/roach88/netsync/internal/value"
)

// Snapshot is one predicted state. Once appended to history it is never
// modified; accessors hand out copies.
type Snapshot struct {
	Timestamp time.Time
	Transform value.Transform
	Velocity  value.Vector3
	Sequence  uint64
	Inputs    map[string]value.Value
	Tracked   map[string]value.Value
}

func (s Snapshot) clone() Snapshot {
	s.Inputs = maps.Clone(s.Inputs)
	s.Tracked = maps.Clone(s.Tracked)
	return s
}

// Outcome classifies one reconciliation.
type Outcome int

const (
	// OutcomeWithinThreshold: the prediction was close enough; nothing changed.
	OutcomeWithinThreshold Outcome = iota
	// OutcomeCorrected: a smoothed correction was applied.
	OutcomeCorrected
	// OutcomeFallback: the acknowledged sequence was not in history and the
	// server state was applied directly.
	OutcomeFallback
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWithinThreshold:
		return "within_threshold"
	case OutcomeCorrected:
		return "corrected"
	case OutcomeFallback:
		return "fallback"
	}
	return "unknown"
}

// Reconciliation reports what ProcessServerUpdate did.
type Reconciliation struct {
	Outcome Outcome
	Acked   uint64
	// Errors between live and server state. Zero on fallback.
	PositionError float64
	RotationError float64
	VelocityError float64
	// Discarded counts history entries dropped by the acknowledgment.
	Discarded int
}

// Observer receives every reconciliation result.
type Observer interface {
	ObserveReconciliation(r Reconciliation)
}
