package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemavalidate "github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaRegistry compiles and caches one JSON-schema validator per Go
// type reflected over with invopop/jsonschema, so Typed[T] pays the
// reflection and compilation cost once per T rather than once per call.
type schemaRegistry struct {
	mu         sync.Mutex
	validators map[reflect.Type]*jsonschemavalidate.Schema
}

var globalSchemas = &schemaRegistry{validators: make(map[reflect.Type]*jsonschemavalidate.Schema)}

func validatorFor(t reflect.Type) (*jsonschemavalidate.Schema, error) {
	globalSchemas.mu.Lock()
	defer globalSchemas.mu.Unlock()

	if v, ok := globalSchemas.validators[t]; ok {
		return v, nil
	}

	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.ReflectFromType(t)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("reflect schema for %s: %w", t, err)
	}

	const resourceName = "schema.json"
	compiler := jsonschemavalidate.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %s: %w", t, err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", t, err)
	}

	globalSchemas.validators[t] = compiled
	return compiled, nil
}

// validateAgainstSchema decodes raw into an any value and runs it through
// the compiled validator for T, returning a descriptive error on mismatch.
func validateAgainstSchema(t reflect.Type, raw json.RawMessage) error {
	validator, err := validatorFor(t)
	if err != nil {
		return err
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode for validation: %w", err)
	}
	return validator.Validate(decoded)
}

// SchemaFor returns the JSON schema document for T, used by the tool
// registry to publish ToolDefinition.ParametersJSONSchema and by the
// prompt builder to embed the aggregated <TOOL_JSON_SCHEMA> block.
func SchemaFor(t reflect.Type) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	schema := reflector.ReflectFromType(t)
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("reflect schema for %s: %w", t, err)
	}
	return raw, nil
}
