package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/netsync/internal/value"
)

// TraceSnapshot is the golden-file form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to generic values, since
// value.MarshalCanonical does not accept structs.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step": ev.Step,
			"op":   ev.Op,
		}
		if ev.ObjectID != 0 {
			m["object_id"] = ev.ObjectID
		}
		if ev.Code != "" {
			m["code"] = ev.Code
		}
		if len(ev.Calls) > 0 {
			m["calls"] = stringList(ev.Calls)
		}
		if len(ev.Reconciliations) > 0 {
			m["reconciliations"] = stringList(ev.Reconciliations)
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

func stringList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// CanonicalTrace renders a result's trace as canonical JSON.
func CanonicalTrace(name string, result *Result) ([]byte, error) {
	snap := TraceSnapshot{ScenarioName: name, Trace: result.Trace}
	return value.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := CanonicalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
