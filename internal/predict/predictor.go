package predict

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/value"
)

// Option configures a Predictor.
type Option func(*Predictor)

// WithClock sets the time source for snapshot timestamps and filtering.
func WithClock(now func() time.Time) Option {
	return func(p *Predictor) {
		p.now = now
	}
}

// WithAuthority sets the check TakeSnapshot consults. Without it the body
// is always treated as locally controlled.
func WithAuthority(isLocal func() bool) Option {
	return func(p *Predictor) {
		p.isLocal = isLocal
	}
}

// WithInputs sets the source of input values captured with each snapshot.
func WithInputs(inputs func() map[string]value.Value) Option {
	return func(p *Predictor) {
		p.inputs = inputs
	}
}

// WithTracked captures the named properties of obj with each snapshot.
// No names means every trackable property.
func WithTracked(m *marshal.Marshaller, obj marshal.Object, fields ...string) Option {
	return func(p *Predictor) {
		if len(fields) == 0 {
			fields = m.TrackableFields(obj)
		}
		p.tracked = func() map[string]value.Value {
			out := make(map[string]value.Value, len(fields))
			for _, name := range fields {
				v, err := m.SerializeProperty(obj, name)
				if err != nil || value.IsNone(v) {
					continue
				}
				out[name] = v
			}
			return out
		}
	}
}

// WithObserver reports every reconciliation to o.
func WithObserver(o Observer) Option {
	return func(p *Predictor) {
		p.observer = o
	}
}

// Predictor keeps the prediction history for one controlled body.
//
// INVARIANTS:
//   - history is ordered by Sequence, strictly increasing
//   - len(history) <= cfg.MaxHistory
//   - every entry's Sequence is greater than the last acknowledgment
type Predictor struct {
	cfg  Config
	body Body

	history []Snapshot
	nextSeq uint64

	lastAcked uint64
	hasAcked  bool

	position vectorFilter

	now      func() time.Time
	isLocal  func() bool
	inputs   func() map[string]value.Value
	tracked  func() map[string]value.Value
	observer Observer
}

// New creates a Predictor for body.
func New(body Body, cfg Config, opts ...Option) (*Predictor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("prediction config: %w", err)
	}
	p := &Predictor{
		cfg:      cfg,
		body:     body,
		position: newVectorFilter(cfg.Filter),
		now:      time.Now,
		isLocal:  func() bool { return true },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the predictor's configuration.
func (p *Predictor) Config() Config { return p.cfg }

// TakeSnapshot records the body's current state under the next sequence
// number. It does nothing when the body is not locally controlled.
func (p *Predictor) TakeSnapshot() (Snapshot, bool) {
	if !p.isLocal() {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Timestamp: p.now(),
		Transform: p.body.Transform(),
		Velocity:  p.body.Velocity(),
		Sequence:  p.nextSeq,
	}
	if p.inputs != nil {
		snap.Inputs = maps.Clone(p.inputs())
	}
	if p.tracked != nil {
		snap.Tracked = p.tracked()
	}

	p.history = append(p.history, snap)
	p.nextSeq++
	loc := snap.Transform.Location
	p.position.filter(loc.X, loc.Y, loc.Z, snap.Timestamp)
	p.prune(snap.Timestamp)
	return snap.clone(), true
}

// Tick is the per-frame entry point: age out old history and take a
// snapshot.
func (p *Predictor) Tick() (Snapshot, bool) {
	p.prune(p.now())
	return p.TakeSnapshot()
}

// prune drops history from the front past the count bound or older than
// MaxAge.
func (p *Predictor) prune(now time.Time) {
	drop := 0
	if over := len(p.history) - p.cfg.MaxHistory; over > 0 {
		drop = over
	}
	if p.cfg.MaxAge > 0 {
		cutoff := now.Add(-p.cfg.MaxAge)
		for drop < len(p.history) && p.history[drop].Timestamp.Before(cutoff) {
			drop++
		}
	}
	if drop > 0 {
		p.history = append(p.history[:0], p.history[drop:]...)
	}
}

// ProcessServerUpdate reconciles against an authoritative state for
// acked. The acknowledgment floor becomes acked unconditionally.
func (p *Predictor) ProcessServerUpdate(server value.Transform, serverVel value.Vector3, acked uint64) Reconciliation {
	p.lastAcked = acked
	p.hasAcked = true

	res := Reconciliation{Acked: acked}

	if _, found := p.find(acked); !found {
		res.Outcome = OutcomeFallback
		ApplyAuthoritative(p.body, server, serverVel)
		p.position.reset()
		slog.Debug("reconcile fallback: acknowledged sequence not in history",
			"acked", acked,
			"history", len(p.history),
		)
	} else {
		live := p.body.Transform()
		liveVel := p.body.Velocity()

		res.PositionError = live.Location.Manhattan(server.Location)
		res.RotationError = live.Rotation.AngularDistance(server.Rotation)
		res.VelocityError = liveVel.Manhattan(serverVel)

		if res.PositionError > p.cfg.PositionThreshold ||
			res.RotationError > p.cfg.RotationThreshold ||
			res.VelocityError > p.cfg.VelocityThreshold {
			res.Outcome = OutcomeCorrected
			p.correct(live, liveVel, server, serverVel)
		} else {
			res.Outcome = OutcomeWithinThreshold
		}
	}

	res.Discarded = p.discardThrough(acked)
	if p.observer != nil {
		p.observer.ObserveReconciliation(res)
	}
	return res
}

// correct blends live state toward the server. Position goes through the
// per-axis filter, which also sees every snapshot, and each axis is then
// held between the server and live values. Rotation is slerped and
// velocity is blended linearly.
func (p *Predictor) correct(live value.Transform, liveVel value.Vector3, server value.Transform, serverVel value.Vector3) {
	s := p.cfg.Smoothing
	if s == 0 {
		ApplyAuthoritative(p.body, server, serverVel)
		p.position.reset()
		return
	}

	blended := server.Location.Lerp(live.Location, s)
	x, y, z := p.position.filter(blended.X, blended.Y, blended.Z, p.now())
	loc := value.Vector3{
		X: between(x, server.Location.X, live.Location.X),
		Y: between(y, server.Location.Y, live.Location.Y),
		Z: between(z, server.Location.Z, live.Location.Z),
	}

	p.body.SetTransform(value.Transform{
		Location: loc,
		Rotation: live.Rotation.Slerp(server.Rotation, 1-s),
		Scale:    server.Scale,
	})
	p.body.SetVelocity(serverVel.Lerp(liveVel, s))
}

// between clamps v to the closed interval spanned by a and b.
func between(v, a, b float64) float64 {
	return max(min(a, b), min(max(a, b), v))
}

func (p *Predictor) find(seq uint64) (int, bool) {
	for i, s := range p.history {
		if s.Sequence == seq {
			return i, true
		}
		if s.Sequence > seq {
			break
		}
	}
	return 0, false
}

func (p *Predictor) discardThrough(acked uint64) int {
	n := 0
	for n < len(p.history) && p.history[n].Sequence <= acked {
		n++
	}
	if n > 0 {
		p.history = append(p.history[:0], p.history[n:]...)
	}
	return n
}

// History returns copies of the retained snapshots, oldest first.
func (p *Predictor) History() []Snapshot {
	out := make([]Snapshot, len(p.history))
	for i, s := range p.history {
		out[i] = s.clone()
	}
	return out
}

// LastAcked returns the acknowledgment floor, if any update arrived.
func (p *Predictor) LastAcked() (uint64, bool) { return p.lastAcked, p.hasAcked }

// NextSequence returns the sequence the next snapshot will carry.
func (p *Predictor) NextSequence() uint64 { return p.nextSeq }
