package harness

// TraceEvent records what one scenario step did.
type TraceEvent struct {
	Step     int    `json:"step"`
	Op       string `json:"op"`
	ObjectID uint64 `json:"object_id,omitempty"`

	// Code is the sync error code the step failed with, if any.
	Code string `json:"code,omitempty"`

	// Calls lists the reducers the session sent during the step.
	Calls []string `json:"calls,omitempty"`

	// Reconciliations lists prediction outcomes produced by the step.
	Reconciliations []string `json:"reconciliations,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace has one entry per executed step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion and step failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest is the final state digest of the live session and
	// ReplayDigest the digest of the session rebuilt from its journal.
	Digest       string `json:"digest"`
	ReplayDigest string `json:"replay_digest"`

	// State maps each registered id to its class and lifecycle state.
	State map[uint64]string `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[uint64]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
