package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/schema"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/testutil"
	"github.com/roach88/netsync/internal/value"
)

// CodeNotControlled is the step code of a release for an object that
// had no predictor.
const CodeNotControlled = "NOT_CONTROLLED"

// Harness runs one scenario against a live session.
//
// The session is driven on the calling goroutine: inbound events are
// enqueued and drained immediately, so every step completes before the
// next one starts.
type Harness struct {
	scenario *Scenario
	factory  *session.Factory
	session  *session.Session
	store    *store.Store
	caller   *testutil.RecordingCaller
	clock    *testutil.ManualClock
	rec      *recorder

	// refs binds spawn names to their current id.
	refs map[string]uint64
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal with a manual clock, so
// results are reproducible. Execution flow:
//  1. Compile and validate the scenario's classes
//  2. Execute steps in order, checking expected error codes
//  3. Digest the live session and a replay of its journal
//  4. Evaluate assertions
func Run(sc *Scenario) (*Result, error) {
	classes, err := LoadClasses(sc)
	if err != nil {
		return nil, err
	}

	factory := session.NewFactory()
	for _, c := range classes {
		if err := factory.RegisterClass(c); err != nil {
			return nil, fmt.Errorf("register class %s: %w", c.Name, err)
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	caller := testutil.NewRecordingCaller()
	if len(sc.Reject) > 0 {
		caller.Reject(sc.Reject...)
	}
	clock := testutil.NewManualClock(testutil.Epoch)
	rec := &recorder{}

	sess, err := session.New(authority.ClientID(sc.ClientID), factory, caller,
		session.WithJournal(st),
		session.WithID("scenario-"+sc.Name),
		session.WithNow(clock.Now),
		session.WithMetrics(rec),
		session.WithPredictionConfig(sc.Prediction),
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	h := &Harness{
		scenario: sc,
		factory:  factory,
		session:  sess,
		store:    st,
		caller:   caller,
		clock:    clock,
		rec:      rec,
		refs:     make(map[string]uint64),
	}

	ctx := context.Background()
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range sc.Steps {
		ev := h.execute(ctx, i, step)
		result.Trace = append(result.Trace, ev)
		if ev.Code != step.ExpectError {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got %q", i, step.Op, step.ExpectError, ev.Code))
		}
	}

	if err := h.digest(ctx, result); err != nil {
		return nil, err
	}
	for _, e := range sess.Registry().Entries() {
		result.State[uint64(e.ID)] = e.Class + "/" + e.State.String()
	}

	for i, a := range sc.Assertions {
		if err := h.check(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return result, nil
}

// LoadClasses compiles every schema file of sc, then its inline schema,
// and validates the result.
func LoadClasses(sc *Scenario) ([]*marshal.ClassDesc, error) {
	var classes []*marshal.ClassDesc
	for _, path := range sc.Schemas {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		cs, err := schema.CompileString(path, string(src))
		if err != nil {
			return nil, err
		}
		classes = append(classes, cs...)
	}
	if sc.Schema != "" {
		cs, err := schema.CompileString(sc.Name+".cue", sc.Schema)
		if err != nil {
			return nil, err
		}
		classes = append(classes, cs...)
	}

	if errs := schema.Validate(classes, authority.DefaultOwnerField); len(errs) > 0 {
		return nil, fmt.Errorf("invalid classes: %w", errs[0])
	}
	return classes, nil
}

func (h *Harness) execute(ctx context.Context, i int, st Step) TraceEvent {
	ev := TraceEvent{Step: i + 1, Op: st.Op, ObjectID: h.target(st.ID, st.Ref)}
	calls := len(h.caller.Calls())
	recons := len(h.rec.reconciled)

	var err error
	switch st.Op {
	case OpCreate:
		var data []byte
		if st.Data != nil {
			data, err = json.Marshal(st.Data)
		}
		if err == nil {
			ev.Code = h.inbound(ctx, session.CreateEvent(ev.ObjectID, st.Class, data))
		}
	case OpProperty:
		var env []byte
		env, err = json.Marshal(st.Value)
		if err == nil {
			ev.Code = h.inbound(ctx, session.PropertyEvent(ev.ObjectID, st.Property, env))
		}
	case OpDestroy:
		ev.Code = h.inbound(ctx, session.DestroyEvent(ev.ObjectID))
	case OpRemap:
		temp := h.refs[st.Ref]
		ev.ObjectID = st.ID
		ev.Code = h.inbound(ctx, session.RemapEvent(temp, st.ID))
		if ev.Code == "" {
			h.refs[st.Ref] = st.ID
		}
	case OpMovement:
		ev.Code = h.inbound(ctx, session.MovementEvent(ev.ObjectID, movement(st)))

	case OpSpawn:
		var id registry.ID
		id, _, err = h.session.Spawn(st.Class)
		if err == nil {
			ev.ObjectID = uint64(id)
			if st.As != "" {
				h.refs[st.As] = uint64(id)
			}
		}
	case OpSetProperty:
		var v value.Value
		v, err = envelope(st.Value)
		if err == nil {
			err = h.session.SetProperty(registry.ID(ev.ObjectID), st.Property, v)
		}
	case OpSetOwner:
		err = h.session.SetOwner(registry.ID(ev.ObjectID), authority.ClientID(st.Owner))
	case OpInvoke:
		var args []byte
		if st.Args != nil {
			args, err = json.Marshal(st.Args)
		}
		if err == nil {
			err = h.session.Invoke(registry.ID(ev.ObjectID), st.Function, string(args))
		}
	case OpDestroyMine:
		err = h.session.Destroy(registry.ID(ev.ObjectID))
	case OpControl:
		_, err = h.session.Control(registry.ID(ev.ObjectID))
	case OpRelease:
		if !h.session.Release(registry.ID(ev.ObjectID)) {
			ev.Code = CodeNotControlled
		}

	case OpTick:
		n := max(st.Count, 1)
		for range n {
			if st.Duration > 0 {
				h.clock.Advance(st.Duration)
			}
			h.session.Enqueue(session.TickEvent())
		}
		h.session.Drain(ctx)
	case OpAdvance:
		h.clock.Advance(st.Duration)
	}

	if err != nil {
		ev.Code = string(session.CodeOf(err))
		if ev.Code == "" {
			ev.Code = string(session.ErrCodeMalformedEvent)
		}
	}

	for _, c := range h.caller.Calls()[calls:] {
		ev.Calls = append(ev.Calls, c.Reducer)
	}
	ev.Reconciliations = append(ev.Reconciliations, h.rec.reconciled[recons:]...)
	return ev
}

// inbound delivers ev and returns the failure code it produced, if any.
func (h *Harness) inbound(ctx context.Context, ev session.Event) string {
	failed := len(h.rec.failures)
	h.session.Enqueue(ev)
	h.session.Drain(ctx)
	if len(h.rec.failures) > failed {
		return h.rec.failures[len(h.rec.failures)-1]
	}
	return ""
}

func (h *Harness) target(id uint64, ref string) uint64 {
	if ref != "" {
		return h.refs[ref]
	}
	return id
}

// digest fills the live and replayed state digests.
func (h *Harness) digest(ctx context.Context, result *Result) error {
	live, err := h.session.StateDigest()
	if err != nil {
		return fmt.Errorf("state digest: %w", err)
	}
	result.Digest = live

	records, err := h.store.ReadEvents(ctx, h.session.ID())
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}
	replayed, err := session.Replay(ctx, authority.ClientID(h.scenario.ClientID), records, h.factory,
		session.WithPredictionConfig(h.scenario.Prediction))
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	result.ReplayDigest, err = replayed.Session.StateDigest()
	if err != nil {
		return fmt.Errorf("replay digest: %w", err)
	}
	return nil
}

func movement(st Step) session.Movement {
	t := value.IdentityTransform()
	t.Location = vector(st.Location)
	return session.Movement{
		Transform:     t,
		Velocity:      vector(st.Velocity),
		AckedSequence: st.Acked,
	}
}

func vector(v []float64) value.Vector3 {
	if len(v) != 3 {
		return value.Vector3{}
	}
	return value.Vector3{X: v[0], Y: v[1], Z: v[2]}
}

// envelope decodes a YAML Typed Value envelope.
func envelope(m map[string]any) (value.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return value.Unmarshal(data)
}

// recorder captures session metrics so steps can report failures and
// reconciliations.
type recorder struct {
	failures   []string
	reconciled []string
}

func (r *recorder) EventProcessed(string) {}

func (r *recorder) EventFailed(_ string, code session.ErrorCode) {
	r.failures = append(r.failures, string(code))
}

func (r *recorder) Reconciled(outcome string) {
	r.reconciled = append(r.reconciled, outcome)
}

func (r *recorder) AuthorityDenied(string) {}
func (r *recorder) RegistrySize(int)       {}
func (r *recorder) QueueDepth(int)         {}
