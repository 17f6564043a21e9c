package wire

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed frame.schema.json
var frameSchema string

const frameSchemaURL = "https://netsync.dev/schemas/frame.schema.json"

// FrameSchema returns the embedded JSON Schema that Validator enforces.
func FrameSchema() string { return frameSchema }

// Validator checks raw frames against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded frame schema.
func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(frameSchemaURL, strings.NewReader(frameSchema)); err != nil {
		return nil, fmt.Errorf("load frame schema: %w", err)
	}
	s, err := c.Compile(frameSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile frame schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validate reports the first schema violation in data, wrapped in
// ErrMalformedFrame.
func (v *Validator) Validate(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return nil
}

// DecodeValid validates data and then decodes it.
func (v *Validator) DecodeValid(data []byte) (Frame, error) {
	if err := v.Validate(data); err != nil {
		return Frame{}, err
	}
	return Decode(data)
}
