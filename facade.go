package sibila

import (
	"context"
	"reflect"

	"github.com/jndiogo/sibila-go/provider"
	"github.com/jndiogo/sibila-go/registry"
	"github.com/jndiogo/sibila-go/schema"
)

// Model is the public handle callers build once per backend and reuse
// across calls: an adapter plus an optional registry for chat-template
// format resolution.
type Model struct {
	Adapter provider.Adapter

	// Registry resolves the model's chat-template format (a Jinja-style
	// prompt template consumed only by adapters that render a flat prompt
	// string, e.g. local) from the adapter's model id; nil skips resolution.
	Registry *registry.Registry
	// FormatName forces a named registry format over pattern matching.
	FormatName string
	// OutputCap is a hard output-token ceiling independent of the
	// adapter's context window; 0 means none.
	OutputCap int
}

func (m Model) deps(plan *schema.Plan) Deps {
	return Deps{
		Adapter:    m.Adapter,
		Registry:   m.Registry,
		FormatName: m.FormatName,
		Plan:       plan,
		OutputCap:  m.OutputCap,
	}
}

// Text runs thread against the model with no output-format constraint and
// returns the generated text.
func (m Model) Text(ctx context.Context, thread Thread, gc GenConf) (*GenResult, error) {
	gc.Format = FormatText
	gc.Schema = nil
	return Run(ctx, m.deps(nil), thread, gc)
}

// JSON runs thread asking for free-form JSON (schemaMap nil) or JSON
// constrained to schemaMap, returning the parsed value in
// GenResult.Parsed.
func (m Model) JSON(ctx context.Context, thread Thread, schemaMap map[string]any, gc GenConf) (*GenResult, error) {
	gc.Format = FormatJSON
	if schemaMap != nil {
		s := JSONSchema(schemaMap)
		gc.Schema = &s
	} else {
		gc.Schema = nil
	}
	return Run(ctx, m.deps(nil), thread, gc)
}

// Extract runs thread asking for JSON matching T's field layout (tagged
// with `json`, `desc` and `default` struct tags the way schema.FromStruct
// reads them) and instantiates the result as a T in GenResult.Value. Unlike
// Text/JSON, a non-OK result is raised as an error rather than returned
// alongside GenResult.Err: see raiseOnFailure.
func Extract[T any](ctx context.Context, m Model, thread Thread, gc GenConf) (*GenResult, error) {
	var zero T
	target := schema.FromStruct(reflect.TypeOf(zero), "")

	compiled, plan, err := schema.Compile(target)
	if err != nil {
		return nil, NewSchemaCompileError(err.Error())
	}

	gc.Format = FormatJSON
	s := JSONSchema(compiled.ToMap())
	gc.Schema = &s

	result, err := Run(ctx, m.deps(&plan), thread, gc)
	if err != nil {
		return nil, err
	}
	return raiseOnFailure(result, m.Adapter.Provider(), gc)
}

// Classify runs thread asking for exactly one of labels and returns the
// chosen label via GenResult.Value (a string). A non-OK result is raised as
// an error rather than returned alongside GenResult.Err: see raiseOnFailure.
func (m Model) Classify(ctx context.Context, thread Thread, labels []string, gc GenConf) (*GenResult, error) {
	values := make([]any, len(labels))
	for i, l := range labels {
		values[i] = l
	}
	target := schema.Enum("one label classifying the input", values...)

	compiled, plan, err := schema.Compile(target)
	if err != nil {
		return nil, NewSchemaCompileError(err.Error())
	}

	gc.Format = FormatJSON
	s := JSONSchema(compiled.ToMap())
	gc.Schema = &s

	result, err := Run(ctx, m.deps(&plan), thread, gc)
	if err != nil {
		return nil, err
	}
	return raiseOnFailure(result, m.Adapter.Provider(), gc)
}

// List runs thread asking for a JSON array of elemTarget and instantiates
// the result (a []any, whose elements are typed values when elemTarget
// carries a GoType) via GenResult.Value. A non-OK result is raised as an error rather than
// returned alongside GenResult.Err: see raiseOnFailure.
func (m Model) List(ctx context.Context, thread Thread, elemTarget schema.Target, gc GenConf) (*GenResult, error) {
	target := schema.List("", elemTarget)

	compiled, plan, err := schema.Compile(target)
	if err != nil {
		return nil, NewSchemaCompileError(err.Error())
	}

	gc.Format = FormatJSON
	s := JSONSchema(compiled.ToMap())
	gc.Schema = &s

	result, err := Run(ctx, m.deps(&plan), thread, gc)
	if err != nil {
		return nil, err
	}
	return raiseOnFailure(result, m.Adapter.Provider(), gc)
}

// raiseOnFailure converts a GenResult whose Finish reason indicates a parse,
// schema, or truncation failure into a typed *Error (passing through one the
// pipeline already recorded, wrapping a plain error otherwise), applying gc.AllowTruncatedJSON's LENGTH-tolerance opt-in. A result that
// already represents success passes through unchanged.
func raiseOnFailure(result *GenResult, providerName string, gc GenConf) (*GenResult, error) {
	switch result.Finish {
	case FinishJSONParseError:
		return nil, NewJSONParseError(result.Err)
	case FinishSchemaErr, FinishSchemaValueErr:
		if sibErr, ok := result.Err.(*Error); ok {
			return nil, sibErr
		}
		return nil, NewSchemaValueError(result.Err.Error(), result.Err)
	case FinishModelError:
		return nil, NewGenerationError(providerName, "model returned an unrecognized finish reason")
	case FinishOKLength:
		if !gc.AllowTruncatedJSON {
			return nil, NewGenerationError(providerName, "completion was truncated before finishing (set GenConf.AllowTruncatedJSON to accept this)")
		}
	}
	return result, nil
}

// TextAsync, JSONAsync mirror Text/JSON but return immediately with an
// AsyncGen handle instead of blocking.
func (m Model) TextAsync(ctx context.Context, thread Thread, gc GenConf) *AsyncGen {
	gc.Format = FormatText
	gc.Schema = nil
	return RunAsync(ctx, m.deps(nil), thread, gc)
}

func (m Model) JSONAsync(ctx context.Context, thread Thread, schemaMap map[string]any, gc GenConf) *AsyncGen {
	gc.Format = FormatJSON
	if schemaMap != nil {
		s := JSONSchema(schemaMap)
		gc.Schema = &s
	} else {
		gc.Schema = nil
	}
	return RunAsync(ctx, m.deps(nil), thread, gc)
}
