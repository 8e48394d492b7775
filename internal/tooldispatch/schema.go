package tooldispatch

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// generateSchema creates the model-facing JSON schema for a tool's
// argument struct from its json/jsonschema tags.
//
// Supported tags:
//   - json:"name" - parameter name
//   - json:",omitempty" - optional parameter
//   - jsonschema:"required" - explicitly mark as required
//   - jsonschema:"description=..." - parameter description
//   - jsonschema:"enum=val1,enum=val2" - allowed values, one enum= per value
//   - jsonschema:"minimum=N,maximum=M" - numeric constraints
func generateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		// Inline everything; no $ref, $schema or $id in tool schemas.
		ExpandedStruct: true,
		DoNotReference: true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal tool schema: %w", err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal tool schema: %w", err)
	}

	delete(result, "$schema")
	delete(result, "$id")
	if result["type"] == nil {
		result["type"] = "object"
	}
	return result, nil
}

// mustSchema is for the statically known argument structs registered at
// startup, where a generation failure is a programming error.
func mustSchema[T any]() map[string]any {
	schema, err := generateSchema[T]()
	if err != nil {
		panic(err)
	}
	return schema
}
