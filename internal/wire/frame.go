// Package wire defines the JSON frames exchanged with the sync server.
//
// Every frame carries a "type" discriminator. Clients send call frames;
// the server answers each with a call_result and pushes replication
// frames (property, create, destroy, remap, movement) at any time.
// Property values, snapshots and movement state use Typed Value envelopes.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Frame types.
const (
	TypeCall       = "call"
	TypeCallResult = "call_result"
	TypeProperty   = "property"
	TypeCreate     = "create"
	TypeDestroy    = "destroy"
	TypeRemap      = "remap"
	TypeMovement   = "movement"
)

// ErrMalformedFrame wraps every decode failure.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is the union of all frame shapes. Fields irrelevant to Type are
// left empty.
type Frame struct {
	Type string `json:"type" jsonschema:"required,enum=call,enum=call_result,enum=property,enum=create,enum=destroy,enum=remap,enum=movement"`

	// Call correlation; call and call_result.
	CallID  uint64          `json:"call_id,omitempty"`
	Reducer string          `json:"reducer,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`

	ObjectID uint64 `json:"object_id,omitempty"`
	TempID   uint64 `json:"temp_id,omitempty"`
	Class    string `json:"class,omitempty"`
	Property string `json:"property,omitempty"`

	// Value is a Typed Value envelope (property).
	Value json.RawMessage `json:"value,omitempty"`
	// Data is a property-name → envelope snapshot (create).
	Data json.RawMessage `json:"data,omitempty"`

	// Movement state; Transform and Velocity are envelopes.
	Transform     json.RawMessage `json:"transform,omitempty"`
	Velocity      json.RawMessage `json:"velocity,omitempty"`
	AckedSequence uint64          `json:"acked_sequence,omitempty"`
}

// Call builds a call frame.
func Call(id uint64, reducer, argsJSON string) Frame {
	return Frame{Type: TypeCall, CallID: id, Reducer: reducer, Args: json.RawMessage(argsJSON)}
}

// CallResult builds the server's answer to call id.
func CallResult(id uint64, ok bool, msg string) Frame {
	return Frame{Type: TypeCallResult, CallID: id, OK: &ok, Error: msg}
}

// Encode renders f as a single JSON line without HTML escaping.
func Encode(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses one frame. Unknown fields are rejected.
func Decode(data []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var f Frame
	if err := dec.Decode(&f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}
