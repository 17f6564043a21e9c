package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/netsync/internal/predict"
)

// Scenario drives one session through a scripted sequence of server
// events and local requests, then checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// ClientID is the local client. Defaults to 1.
	ClientID int64 `yaml:"client_id,omitempty"`

	// Schemas lists CUE class files, relative to the scenario file.
	Schemas []string `yaml:"schemas,omitempty"`

	// Schema is inline CUE class source, compiled after Schemas.
	Schema string `yaml:"schema,omitempty"`

	// Reject lists reducers the fake transport refuses.
	Reject []string `yaml:"reject,omitempty"`

	// Prediction overrides predictor settings; omitted keys keep defaults.
	Prediction predict.Config `yaml:"prediction,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action. Op selects which other fields apply.
type Step struct {
	Op string `yaml:"op"`

	// ID addresses an object by id; Ref addresses it by a name bound
	// with As on an earlier spawn.
	ID  uint64 `yaml:"id,omitempty"`
	Ref string `yaml:"ref,omitempty"`
	As  string `yaml:"as,omitempty"`

	Class    string         `yaml:"class,omitempty"`
	Property string         `yaml:"property,omitempty"`
	Value    map[string]any `yaml:"value,omitempty"`
	Data     map[string]any `yaml:"data,omitempty"`
	Owner    int64          `yaml:"owner,omitempty"`
	Function string         `yaml:"function,omitempty"`
	Args     any            `yaml:"args,omitempty"`

	// Movement state.
	Location []float64 `yaml:"location,omitempty"`
	Velocity []float64 `yaml:"velocity,omitempty"`
	Acked    uint64    `yaml:"acked,omitempty"`

	Count    int           `yaml:"count,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`

	// ExpectError is the sync error code this step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step operations.
const (
	// Inbound server events.
	OpCreate   = "create"
	OpProperty = "property"
	OpDestroy  = "destroy"
	OpRemap    = "remap"
	OpMovement = "movement"

	// Local requests.
	OpSpawn       = "spawn"
	OpSetProperty = "set_property"
	OpSetOwner    = "set_owner"
	OpInvoke      = "invoke"
	OpDestroyMine = "destroy_local"
	OpControl     = "control"
	OpRelease     = "release"

	// Time.
	OpTick    = "tick"
	OpAdvance = "advance"
)

// Assertion checks the final state of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	ID  uint64 `yaml:"id,omitempty"`
	Ref string `yaml:"ref,omitempty"`

	Class    string         `yaml:"class,omitempty"`
	State    string         `yaml:"state,omitempty"`
	Property string         `yaml:"property,omitempty"`
	Value    map[string]any `yaml:"value,omitempty"`

	Count    *int     `yaml:"count,omitempty"`
	Reducers []string `yaml:"reducers,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`

	Location  []float64 `yaml:"location,omitempty"`
	Tolerance float64   `yaml:"tolerance,omitempty"`
}

// Assertion types.
const (
	AssertRegistered      = "registered"
	AssertAbsent          = "absent"
	AssertProperty        = "property"
	AssertCalls           = "calls"
	AssertHistoryLen      = "history_len"
	AssertTransform       = "transform"
	AssertReconciliations = "reconciliations"
	AssertFailures        = "failures"
	AssertReplayMatches   = "replay_matches"
)

var validOps = map[string]bool{
	OpCreate: true, OpProperty: true, OpDestroy: true, OpRemap: true, OpMovement: true,
	OpSpawn: true, OpSetProperty: true, OpSetOwner: true, OpInvoke: true,
	OpDestroyMine: true, OpControl: true, OpRelease: true, OpTick: true, OpAdvance: true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// errors and schema paths are resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML, resolving relative schema paths
// against basePath.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	s := Scenario{Prediction: predict.DefaultConfig()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if s.ClientID == 0 {
		s.ClientID = 1
	}
	for i, p := range s.Schemas {
		if !filepath.IsAbs(p) && basePath != "" {
			s.Schemas[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Schemas) == 0 && s.Schema == "" {
		return fmt.Errorf("schemas or schema is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if err := s.Prediction.Validate(); err != nil {
		return fmt.Errorf("prediction: %w", err)
	}

	for _, p := range s.Schemas {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	bound := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, bound); err != nil {
			return err
		}
		if step.As != "" {
			bound[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, bound); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, st Step, bound map[string]bool) error {
	if !validOps[st.Op] {
		return fmt.Errorf("steps[%d]: unknown op %q", i, st.Op)
	}
	if st.Ref != "" && !bound[st.Ref] {
		return fmt.Errorf("steps[%d]: ref %q is not bound by an earlier spawn", i, st.Ref)
	}
	if st.As != "" && st.Op != OpSpawn {
		return fmt.Errorf("steps[%d]: as is only valid on spawn", i)
	}

	needsTarget := st.Op != OpSpawn && st.Op != OpTick && st.Op != OpAdvance
	if needsTarget && st.ID == 0 && st.Ref == "" {
		return fmt.Errorf("steps[%d]: %s requires id or ref", i, st.Op)
	}

	switch st.Op {
	case OpCreate, OpSpawn:
		if st.Class == "" {
			return fmt.Errorf("steps[%d]: %s requires class", i, st.Op)
		}
	case OpProperty, OpSetProperty:
		if st.Property == "" || st.Value == nil {
			return fmt.Errorf("steps[%d]: %s requires property and value", i, st.Op)
		}
	case OpRemap:
		if st.ID == 0 || st.Ref == "" {
			return fmt.Errorf("steps[%d]: remap requires ref (temp) and id (server)", i)
		}
	case OpMovement:
		if len(st.Location) != 3 {
			return fmt.Errorf("steps[%d]: movement requires a 3-element location", i)
		}
		if st.Velocity != nil && len(st.Velocity) != 3 {
			return fmt.Errorf("steps[%d]: velocity must have 3 elements", i)
		}
	case OpInvoke:
		if st.Function == "" {
			return fmt.Errorf("steps[%d]: invoke requires function", i)
		}
	case OpAdvance:
		if st.Duration <= 0 {
			return fmt.Errorf("steps[%d]: advance requires a positive duration", i)
		}
	}
	return nil
}

func validateAssertion(i int, a Assertion, bound map[string]bool) error {
	if a.Ref != "" && !bound[a.Ref] {
		return fmt.Errorf("assertions[%d]: ref %q is not bound", i, a.Ref)
	}
	needsTarget := false
	switch a.Type {
	case AssertRegistered, AssertAbsent:
		needsTarget = true
	case AssertProperty:
		needsTarget = true
		if a.Property == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: property requires property and value", i)
		}
	case AssertHistoryLen:
		needsTarget = true
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: history_len requires count", i)
		}
	case AssertTransform:
		needsTarget = true
		if len(a.Location) != 3 {
			return fmt.Errorf("assertions[%d]: transform requires a 3-element location", i)
		}
	case AssertCalls:
		if a.Count == nil && a.Reducers == nil {
			return fmt.Errorf("assertions[%d]: calls requires count or reducers", i)
		}
	case AssertReconciliations:
		if a.Outcomes == nil {
			return fmt.Errorf("assertions[%d]: reconciliations requires outcomes", i)
		}
	case AssertFailures:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: failures requires count", i)
		}
	case AssertReplayMatches:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	if needsTarget && a.ID == 0 && a.Ref == "" {
		return fmt.Errorf("assertions[%d]: %s requires id or ref", i, a.Type)
	}
	return nil
}
