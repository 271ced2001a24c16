package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks a decoded JSON value against the compiled schema,
// distinguishing a malformed schema (ValidationError, should never happen
// for a schema this package produced) from a value that fails to satisfy
// an otherwise-valid schema (ValueError, the common case when a model's
// output drifts from the target).
func Validate(s *Schema, value any) error {
	compiled, err := compileJSONSchema(s)
	if err != nil {
		return NewValidationError("schema rejected by validator", err)
	}
	if err := compiled.Validate(value); err != nil {
		return NewValueError("value does not satisfy schema", err)
	}
	return nil
}

func compileJSONSchema(s *Schema) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(s.ToMap())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	const resource = "sibila://schema.json"
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
