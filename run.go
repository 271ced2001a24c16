package sibila

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jndiogo/sibila-go/internal/tracing"
	"github.com/jndiogo/sibila-go/provider"
	"github.com/jndiogo/sibila-go/registry"
	"github.com/jndiogo/sibila-go/schema"
)

// jsonInstructionToken is the bypass-check token: a thread that already
// mentions "json" is assumed to already ask for it.
const jsonInstructionToken = "json"

// Deps bundles one Run call's collaborators: the adapter to dispatch to,
// optionally a registry for chat-template format resolution, and
// optionally an instantiation plan for turning the parsed JSON back into a
// native Go value.
type Deps struct {
	Adapter provider.Adapter

	// Registry resolves the model's chat-template format (a Jinja-style
	// prompt template for adapters that render a flat prompt, e.g. local)
	// when set; nil skips format resolution and the request carries no
	// template.
	Registry *registry.Registry
	// FormatName forces a named registry format instead of pattern
	// matching the adapter's model id.
	FormatName string

	// Plan reverses the parsed JSON value back into a native Go value.
	// nil means the caller only wants the parsed map, not an
	// instantiated value (GenResult.Value stays nil).
	Plan *schema.Plan

	// OutputCap is the provider's hard output-token ceiling (0 = none),
	// independent of the context window.
	OutputCap int
}

// Run prepares the thread, dispatches the adapter once, and returns a
// populated GenResult. A non-OK Finish is returned alongside a nil error:
// callers that want Go-idiomatic error handling should use the
// error-returning façade call forms instead of inspecting Finish by hand.
func Run(ctx context.Context, deps Deps, thread Thread, gc GenConf) (*GenResult, error) {
	if err := thread.Validate(); err != nil {
		return nil, NewInvalidInputError(err.Error())
	}

	gc = gc.For(deps.Adapter.Provider())

	requestID := uuid.NewString()
	ctx = tracing.WithRequestID(ctx, requestID)

	template := resolveTemplate(deps)

	if gc.Format != FormatJSON {
		return runText(ctx, deps, thread, gc, template)
	}
	return runJSON(ctx, deps, thread, gc, template)
}

// resolveTemplate looks up the model's chat-template format, if a registry
// is attached; adapters that don't consume provider.Request.Template (every
// remote backend) simply ignore the field.
func resolveTemplate(deps Deps) string {
	if deps.Registry == nil {
		return ""
	}
	entry, err := deps.Registry.ResolveFormat(deps.FormatName, deps.Adapter.ModelID())
	if err != nil {
		return ""
	}
	return entry.Template
}

func runText(ctx context.Context, deps Deps, thread Thread, gc GenConf, template string) (*GenResult, error) {
	req, inputTokens, err := buildRequest(deps.Adapter, thread, gc, provider.StrategyPromptOnly, nil, template)
	if err != nil {
		return nil, err
	}
	available, ok := AvailableOutput(inputTokens, deps.Adapter.ContextLength(), deps.OutputCap)
	if !ok {
		return nil, NewContextOverflowError(fmt.Sprintf(
			"input (%d tokens) leaves no room for output in a %d-token context",
			inputTokens, deps.Adapter.ContextLength()))
	}
	req.MaxTokens = gc.ResolveMaxTokens(deps.Adapter.ContextLength(), available)
	resp, err := deps.Adapter.Generate(ctx, req)
	if err != nil {
		return nil, NewTransportError(deps.Adapter.Provider(), err)
	}
	return &GenResult{
		Finish: MapFinishReason(RawFinishReason(resp.RawFinish)),
		Text:   resp.Text,
		Usage:  Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}, nil
}

func runJSON(ctx context.Context, deps Deps, thread Thread, gc GenConf, template string) (*GenResult, error) {
	hasSchema := gc.Schema != nil
	var schemaMap map[string]any
	if hasSchema {
		schemaMap = *gc.Schema
	}

	strategy, err := chooseStrategy(deps.Adapter, hasSchema)
	if err != nil {
		return nil, NewUnsupportedError(deps.Adapter.Provider(), err.Error())
	}

	working := thread.Clone()
	if !working.ContainsToken(jsonInstructionToken) {
		working.AppendToFirstMessage(jsonInstruction(schemaMap))
	}

	req, inputTokens, err := buildRequest(deps.Adapter, working, gc, strategy, schemaMap, template)
	if err != nil {
		return nil, err
	}

	available, ok := AvailableOutput(inputTokens, deps.Adapter.ContextLength(), deps.OutputCap)
	if !ok {
		return nil, NewContextOverflowError(fmt.Sprintf(
			"input (%d tokens) leaves no room for output in a %d-token context",
			inputTokens, deps.Adapter.ContextLength()))
	}
	req.MaxTokens = gc.ResolveMaxTokens(deps.Adapter.ContextLength(), available)

	resp, err := deps.Adapter.Generate(ctx, req)
	if err != nil {
		return nil, NewTransportError(deps.Adapter.Provider(), err)
	}

	result := &GenResult{
		Finish: MapFinishReason(RawFinishReason(resp.RawFinish)),
		Text:   resp.Text,
		Usage:  Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}

	decoded, err := parseJSON(resp.Text)
	if err != nil {
		result.Finish = FinishJSONParseError
		result.Err = err
		return result, nil
	}
	if m, ok := decoded.(map[string]any); ok {
		result.Parsed = m
	}

	if hasSchema {
		wireSchema, err := schema.FromMap(schemaMap)
		if err != nil {
			result.Finish = FinishSchemaErr
			result.Err = NewSchemaInvalidError("parse compiled schema", err)
			return result, nil
		}
		if err := schema.Validate(wireSchema, decoded); err != nil {
			var invalid *schema.ValidationError
			if errors.As(err, &invalid) {
				result.Finish = FinishSchemaErr
				result.Err = NewSchemaInvalidError("schema rejected by validator", err)
				return result, nil
			}
			result.Finish = FinishSchemaValueErr
			result.Err = err
			return result, nil
		}
	}

	if deps.Plan != nil {
		value, err := schema.Instantiate(*deps.Plan, decoded)
		if err != nil {
			result.Finish = FinishSchemaValueErr
			result.Err = err
			return result, nil
		}
		result.Value = value
	}

	return result, nil
}

// buildRequest converts a prepared thread and GenConf into a
// provider.Request (MaxTokens left unresolved; the caller clamps it against
// the real input-token count) plus that input-token estimate.
func buildRequest(adapter provider.Adapter, thread Thread, gc GenConf, strategy provider.Strategy, schemaMap map[string]any, template string) (provider.Request, int, error) {
	wire := toProviderMessages(thread.Wire())

	req := provider.Request{
		Model:       adapter.ModelID(),
		Messages:    wire,
		Temperature: gc.Temperature,
		TopP:        gc.TopP,
		Stop:        gc.Stop,
		Strategy:    strategy,
		Schema:      schemaMap,
		Template:    template,
	}

	var inputTokens int
	if counter, ok := adapter.(provider.TokenCounter); ok {
		inputTokens = counter.TokenLength(context.Background(), req)
	} else {
		inputTokens = provider.EstimateRequestTokens(wire, schemaMap)
	}
	return req, inputTokens, nil
}

func toProviderMessages(in []WireMessage) []provider.WireMessage {
	out := make([]provider.WireMessage, len(in))
	for i, m := range in {
		out[i] = provider.WireMessage{Role: string(m.Role), Text: m.Text, Parts: toProviderParts(m.Parts)}
	}
	return out
}

func toProviderParts(in []WireContentPart) []provider.WireContentPart {
	if len(in) == 0 {
		return nil
	}
	out := make([]provider.WireContentPart, len(in))
	for i, p := range in {
		out[i] = provider.WireContentPart{Type: p.Type, Text: p.Text, ImageURL: p.ImageURL}
	}
	return out
}

func jsonInstruction(schemaMap map[string]any) string {
	if schemaMap == nil {
		return "Output JSON."
	}
	encoded, err := json.MarshalIndent(schemaMap, "", "  ")
	if err != nil {
		return "Output JSON."
	}
	return "Output JSON matching the following schema:\n" + string(encoded)
}
