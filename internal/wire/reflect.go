package wire

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the Frame struct into a JSON Schema. It
// documents the Go shape; the embedded schema adds the per-type
// required fields.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	s := r.Reflect(&Frame{})
	s.Title = "netsync frame"
	s.Description = "Union of client and server frames, discriminated by type."

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal frame schema: %w", err)
	}
	return append(data, '\n'), nil
}
