package testutil

import (
	"sync"
)

// Call is one outbound call seen by a RecordingCaller.
type Call struct {
	Reducer string `yaml:"reducer" json:"reducer"`
	Args    string `yaml:"args" json:"args"`
}

// RecordingCaller records outbound reducer calls and accepts them unless
// the reducer was marked rejected. It implements authority.Caller.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingCaller struct {
	mu        sync.Mutex
	calls     []Call
	rejected  map[string]bool
	rejectAll bool
}

// NewRecordingCaller creates a caller that accepts everything.
func NewRecordingCaller() *RecordingCaller {
	return &RecordingCaller{rejected: make(map[string]bool)}
}

// Call records the call and reports whether it was accepted. Rejected
// calls are not recorded.
func (c *RecordingCaller) Call(reducer, argsJSON string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejectAll || c.rejected[reducer] {
		return false
	}
	c.calls = append(c.calls, Call{Reducer: reducer, Args: argsJSON})
	return true
}

// Reject makes the caller refuse reducer. No names refuses everything.
func (c *RecordingCaller) Reject(reducers ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(reducers) == 0 {
		c.rejectAll = true
		return
	}
	for _, r := range reducers {
		c.rejected[r] = true
	}
}

// Accept undoes Reject.
func (c *RecordingCaller) Accept() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectAll = false
	clear(c.rejected)
}

// Calls returns a copy of the accepted calls in order.
func (c *RecordingCaller) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Last returns the most recent accepted call.
func (c *RecordingCaller) Last() (Call, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return Call{}, false
	}
	return c.calls[len(c.calls)-1], true
}

// Reset forgets recorded calls.
func (c *RecordingCaller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
