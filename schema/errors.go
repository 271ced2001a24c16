package schema

import "fmt"

// CompileError is raised when a target cannot be translated to a schema:
// an unknown type, or mixed enum element types.
type CompileError struct{ Message string }

func NewCompileError(msg string) *CompileError { return &CompileError{Message: msg} }
func (e *CompileError) Error() string           { return fmt.Sprintf("schema: compile error: %s", e.Message) }

// ValueError is raised when a validated JSON value cannot be coerced to the
// target type during instantiation.
type ValueError struct {
	Message string
	Err     error
}

func NewValueError(msg string, err error) *ValueError { return &ValueError{Message: msg, Err: err} }
func (e *ValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema: value error: %s: %s", e.Message, e.Err)
	}
	return fmt.Sprintf("schema: value error: %s", e.Message)
}
func (e *ValueError) Unwrap() error { return e.Err }

// ValidationError is raised when the schema itself is rejected by the
// validator, as distinct from a value failing to satisfy an accepted
// schema.
type ValidationError struct {
	Message string
	Err     error
}

func NewValidationError(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}
func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: schema error: %s: %s", e.Message, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }
