// Package schema reflects Go structs into JSON schemas for model structured
// output and tool parameters.
//
// Supported tags:
//   - json:"name" - property name
//   - jsonschema:"required" - mark as required
//   - jsonschema:"description=..." - property description
//   - jsonschema:"enum=a,enum=b" - allowed values
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// For returns the inline JSON schema of T as a generic map.
func For[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	raw, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustFor is For for package-level schemas built from static types.
func MustFor[T any]() map[string]any {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}
