package sibila

import "math"

// OutputFormat selects whether the model is directed to produce free text
// or JSON.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// GenConf is an immutable-with-overrides record of decoding parameters and
// the output-format directive. Zero value is a valid configuration
// requesting free text with no limits.
type GenConf struct {
	// MaxTokens: 0 = "all available"; a negative value in [-100,-1] is a
	// percentage of the context length.
	MaxTokens   int
	Stop        []string
	Temperature *float64
	TopP        *float64

	Format OutputFormat
	Schema *JSONSchema

	// AllowTruncatedJSON opts Extract/Classify/List in to accepting a
	// LENGTH-truncated completion when the truncated text still parsed and
	// validated successfully. The default raises an error instead, since a
	// model-side truncation other than at the tail of the JSON value can
	// still happen to leave syntactically valid (but semantically
	// incomplete) JSON behind.
	AllowTruncatedJSON bool

	// Overrides holds per-provider GenConf overrides, keyed by provider name.
	Overrides map[string]GenConf
}

// JSONSchema is a normalised JSON Schema fragment, ready to send on the wire
// or compile to a grammar. It is produced by package schema and is an alias
// of the wire-level map shape so provider packages can marshal it directly.
type JSONSchema = map[string]any

// For resolves the effective GenConf for a given provider name, applying
// any per-provider override on top of the base configuration. Overrides
// replace only the fields that are non-zero in the override record's
// non-collection fields; Overrides itself is never inherited recursively.
func (g GenConf) For(provider string) GenConf {
	override, ok := g.Overrides[provider]
	if !ok {
		return g
	}
	merged := g
	merged.Overrides = nil
	if override.MaxTokens != 0 {
		merged.MaxTokens = override.MaxTokens
	}
	if override.Stop != nil {
		merged.Stop = override.Stop
	}
	if override.Temperature != nil {
		merged.Temperature = override.Temperature
	}
	if override.TopP != nil {
		merged.TopP = override.TopP
	}
	if override.Format != "" {
		merged.Format = override.Format
	}
	if override.Schema != nil {
		merged.Schema = override.Schema
	}
	if override.AllowTruncatedJSON {
		merged.AllowTruncatedJSON = true
	}
	return merged
}

// ResolveMaxTokens expands GenConf's MaxTokens against a context length and
// clamps it to a provider output cap:
//
//   - MaxTokens == 0            -> contextLength, clamped to outputCap
//   - MaxTokens in [-100, -1]   -> ceil(contextLength * -MaxTokens / 100), clamped
//   - MaxTokens > 0             -> MaxTokens, clamped to outputCap
func (g GenConf) ResolveMaxTokens(contextLength, outputCap int) int {
	var resolved int
	switch {
	case g.MaxTokens == 0:
		resolved = contextLength
	case g.MaxTokens < 0:
		percent := -g.MaxTokens
		if percent > 100 {
			percent = 100
		}
		resolved = int(math.Ceil(float64(contextLength) * float64(percent) / 100))
		if resolved < 1 {
			resolved = 1
		}
	default:
		resolved = g.MaxTokens
	}
	if outputCap > 0 && resolved > outputCap {
		resolved = outputCap
	}
	return resolved
}

// AvailableOutput computes min(contextLength - inputTokens, outputCap),
// returning ok=false when the result is non-positive (callers should raise
// ContextOverflowError).
func AvailableOutput(inputTokens, contextLength, outputCap int) (tokens int, ok bool) {
	available := contextLength - inputTokens
	if outputCap > 0 && outputCap < available {
		available = outputCap
	}
	if available <= 0 {
		return 0, false
	}
	return available, true
}
