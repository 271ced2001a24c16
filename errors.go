package sibila

import "fmt"

// ErrorKind classifies errors raised by the generation pipeline and provider
// adapters.
type ErrorKind string

const (
	ErrInvalidInput    ErrorKind = "invalid_input"
	ErrTransport       ErrorKind = "transport"
	ErrStatusCode      ErrorKind = "status_code"
	ErrUnsupported     ErrorKind = "unsupported"
	ErrSchemaCompile   ErrorKind = "schema_compile"
	ErrSchemaValue     ErrorKind = "schema_value"
	ErrSchemaInvalid   ErrorKind = "schema_invalid"
	ErrContextOverflow ErrorKind = "context_overflow"
	ErrJSONParse       ErrorKind = "json_parse"
	ErrGeneration      ErrorKind = "generation"
)

// Error is the typed error returned by the public façade and the pipeline
// for non-OK results.
type Error struct {
	Kind     ErrorKind
	Message  string
	Err      error
	Provider string
	Status   int
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidInput:
		return fmt.Sprintf("sibila: invalid input: %s", e.Message)
	case ErrTransport:
		return fmt.Sprintf("sibila: transport error: %s", e.Err)
	case ErrStatusCode:
		return fmt.Sprintf("sibila: status error: %s (status %d)", e.Message, e.Status)
	case ErrUnsupported:
		return fmt.Sprintf("sibila: unsupported by %s: %s", e.Provider, e.Message)
	case ErrSchemaCompile:
		return fmt.Sprintf("sibila: schema compile error: %s", e.Message)
	case ErrSchemaValue:
		return fmt.Sprintf("sibila: schema value error: %s", e.Message)
	case ErrSchemaInvalid:
		return fmt.Sprintf("sibila: schema error: %s", e.Message)
	case ErrContextOverflow:
		return fmt.Sprintf("sibila: context overflow: %s", e.Message)
	case ErrJSONParse:
		return fmt.Sprintf("sibila: json parse error: %s", e.Err)
	case ErrGeneration:
		return fmt.Sprintf("sibila: generation error: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error { return e.Err }

func NewInvalidInputError(msg string) *Error { return &Error{Kind: ErrInvalidInput, Message: msg} }

func NewTransportError(provider string, err error) *Error {
	return &Error{Kind: ErrTransport, Err: err, Provider: provider}
}

func NewStatusCodeError(provider string, status int, body string) *Error {
	return &Error{Kind: ErrStatusCode, Message: body, Status: status, Provider: provider}
}

func NewUnsupportedError(provider, msg string) *Error {
	return &Error{Kind: ErrUnsupported, Message: msg, Provider: provider}
}

func NewSchemaCompileError(msg string) *Error { return &Error{Kind: ErrSchemaCompile, Message: msg} }

func NewSchemaValueError(msg string, err error) *Error {
	return &Error{Kind: ErrSchemaValue, Message: msg, Err: err}
}

func NewSchemaInvalidError(msg string, err error) *Error {
	return &Error{Kind: ErrSchemaInvalid, Message: msg, Err: err}
}

func NewContextOverflowError(msg string) *Error {
	return &Error{Kind: ErrContextOverflow, Message: msg}
}

func NewJSONParseError(err error) *Error { return &Error{Kind: ErrJSONParse, Err: err} }

func NewGenerationError(provider, msg string) *Error {
	return &Error{Kind: ErrGeneration, Provider: provider, Message: msg}
}
