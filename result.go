package sibila

// FinishReason is the error taxonomy carried on every GenResult.
type FinishReason string

const (
	FinishOKStop          FinishReason = "ok_stop"
	FinishOKLength        FinishReason = "ok_length"
	FinishJSONParseError  FinishReason = "json_parse_error"
	FinishSchemaValueErr  FinishReason = "schema_value_error"
	FinishSchemaErr       FinishReason = "schema_error"
	FinishModelError      FinishReason = "model_error"
)

// IsOK reports whether the finish reason represents a usable (if possibly
// truncated) result.
func (f FinishReason) IsOK() bool {
	return f == FinishOKStop || f == FinishOKLength
}

// RawFinishReason is a provider's raw, backend-specific completion code,
// mapped to FinishReason during response cleanup.
type RawFinishReason string

// MapFinishReason normalises a provider's raw completion code into the
// provider-neutral FinishReason taxonomy.
func MapFinishReason(raw RawFinishReason) FinishReason {
	switch raw {
	case "stop", "eos", "tool_calls":
		return FinishOKStop
	case "length", "max_tokens":
		return FinishOKLength
	default:
		return FinishModelError
	}
}

// Usage reports token accounting for one generation call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// GenResult aggregates a generation call's finish kind, raw text, parsed
// dict (if any), and instantiated value (if any).
type GenResult struct {
	Finish FinishReason
	Text   string
	Parsed map[string]any
	Value  any
	Usage  Usage

	// Err carries the underlying schema/parse error when Finish indicates
	// one. Parsed is still populated in that case so callers can inspect
	// what the model produced even though it failed validation.
	Err error
}
