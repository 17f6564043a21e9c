package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/netsync/internal/registry"
	"github.com/roach88/netsync/internal/value"
)

// defaultTolerance bounds transform comparisons when a scenario gives none.
const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %d", ev.Step, ev.Op, ev.ObjectID)
			if ev.Code != "" {
				fmt.Fprintf(&buf, " -> %s", ev.Code)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

func (h *Harness) check(a Assertion, result *Result) error {
	fail := func(expected, actual string, args ...any) error {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf(expected, args...),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	id := registry.ID(h.target(a.ID, a.Ref))

	switch a.Type {
	case AssertRegistered:
		e, ok := h.session.Registry().Entry(id)
		if !ok {
			return fail("object %d registered", "not registered", id)
		}
		if a.Class != "" && e.Class != a.Class {
			return fail("class %s", e.Class, a.Class)
		}
		if a.State != "" && e.State.String() != a.State {
			return fail("state %s", e.State.String(), a.State)
		}

	case AssertAbsent:
		if _, ok := h.session.Registry().FindByID(id); ok {
			return fail("object %d absent", "registered", id)
		}

	case AssertProperty:
		obj, ok := h.session.Registry().FindByID(id)
		if !ok {
			return fail("object %d registered", "not registered", id)
		}
		got, err := h.session.Marshaller().SerializeProperty(obj, a.Property)
		if err != nil {
			return err
		}
		want, err := json.Marshal(a.Value)
		if err != nil {
			return err
		}
		gotJSON, err := value.MarshalCanonical(got)
		if err != nil {
			return err
		}
		wantJSON, err := value.MarshalCanonical(json.RawMessage(want))
		if err != nil {
			return fmt.Errorf("expected value: %w", err)
		}
		if !bytes.Equal(gotJSON, wantJSON) {
			return fail("%s = %s", string(gotJSON), a.Property, wantJSON)
		}

	case AssertCalls:
		calls := h.caller.Calls()
		if a.Count != nil && len(calls) != *a.Count {
			return fail("%d calls", fmt.Sprint(len(calls)), *a.Count)
		}
		if a.Reducers != nil {
			got := make([]string, len(calls))
			for i, c := range calls {
				got[i] = c.Reducer
			}
			if !slices.Equal(got, a.Reducers) {
				return fail("%v", fmt.Sprint(got), a.Reducers)
			}
		}

	case AssertHistoryLen:
		p, ok := h.session.Predictor(id)
		if !ok {
			return fail("object %d controlled", "not controlled", id)
		}
		if n := len(p.History()); n != *a.Count {
			return fail("%d snapshots", fmt.Sprint(n), *a.Count)
		}

	case AssertTransform:
		obj, ok := h.session.Registry().FindByID(id)
		if !ok {
			return fail("object %d registered", "not registered", id)
		}
		v, err := h.session.Marshaller().SerializeProperty(obj, "Transform")
		if err != nil {
			return err
		}
		t, ok := v.(value.Transform)
		if !ok {
			return fail("Transform value", fmt.Sprintf("%T", v))
		}
		tol := a.Tolerance
		if tol == 0 {
			tol = defaultTolerance
		}
		want := vector(a.Location)
		got := t.Location
		if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
			return fail("location %v within %g", fmt.Sprint(got), want, tol)
		}

	case AssertReconciliations:
		if !slices.Equal(h.rec.reconciled, a.Outcomes) {
			return fail("%v", fmt.Sprint(h.rec.reconciled), a.Outcomes)
		}

	case AssertFailures:
		if n := len(h.rec.failures); n != *a.Count {
			return fail("%d failed events", fmt.Sprint(h.rec.failures), *a.Count)
		}

	case AssertReplayMatches:
		if result.Digest != result.ReplayDigest {
			return fail("replay digest %s", result.ReplayDigest, result.Digest)
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
