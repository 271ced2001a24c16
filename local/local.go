// Package local implements a structured-output adapter for an in-process
// or sidecar local inference backend, using grammar-constrained decoding
// instead of a remote API's tool-calling or schema fields.
//
// Model talks to a pluggable Engine rather than hard-coding a single
// inference runtime: the only Engine this package ships is HTTPEngine,
// which drives a llama.cpp-compatible completion server over HTTP, but a
// true in-process GGUF binding can satisfy the same interface without
// any change to Model.
package local

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"text/template"

	"github.com/jndiogo/sibila-go/grammar"
	"github.com/jndiogo/sibila-go/internal/tracing"
	"github.com/jndiogo/sibila-go/provider"
)

const (
	Provider = "local"

	defaultContextLength = 4096

	// prefillOpenBrace is spliced onto the prompt for StrategyPrefill and
	// stitched back onto the completion, since the engine never sees it as
	// part of its own output.
	prefillOpenBrace = "{"
)

// Engine is the pluggable local-inference backend a Model dispatches to.
type Engine interface {
	// TokenCount reports the token length of text using the engine's own
	// tokenizer. ok is false when the engine has no tokenizer loaded, in
	// which case the caller falls back to provider.TokenLength's
	// character-based estimate.
	TokenCount(ctx context.Context, text string) (count int, ok bool)
	// Complete runs one grammar-constrained (or unconstrained, if Grammar
	// is empty) completion.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is the engine-neutral input to one local completion.
type CompletionRequest struct {
	Prompt      string
	Grammar     string
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	Stop        []string
}

// CompletionResponse is the engine-neutral output of one local completion.
type CompletionResponse struct {
	Text             string
	StopReason       string
	PromptTokens     int
	CompletionTokens int
}

// Options configures a Model instance.
type Options struct {
	ContextLength int
}

// Model adapts an Engine to the provider.Adapter contract. A single
// in-flight generation holds exclusive access to the engine's KV cache,
// so Model serialises generations: Generate holds a mutex for the whole
// call, and a concurrent caller blocks until the in-flight generation
// finishes. TokenLength does not take the mutex.
type Model struct {
	engine        Engine
	modelID       string
	contextLength int

	mu sync.Mutex
}

// New creates a local adapter around engine for the named model.
func New(modelID string, engine Engine, opts Options) *Model {
	ctxLen := opts.ContextLength
	if ctxLen == 0 {
		ctxLen = defaultContextLength
	}
	return &Model{engine: engine, modelID: modelID, contextLength: ctxLen}
}

func (m *Model) Provider() string   { return Provider }
func (m *Model) ModelID() string    { return m.modelID }
func (m *Model) ContextLength() int { return m.contextLength }

func (m *Model) SupportedStrategies() []provider.Strategy {
	return []provider.Strategy{provider.StrategyGrammar, provider.StrategyPrefill, provider.StrategyPromptOnly}
}

// TokenLength reports req's prompt token length, preferring the engine's
// own tokenizer and falling back to provider.EstimateRequestTokens. A
// malformed req.Template degrades to the plain rendering rather than
// failing the estimate outright.
func (m *Model) TokenLength(ctx context.Context, req provider.Request) int {
	prompt, err := renderPrompt(req.Messages, req.Template)
	if err != nil {
		prompt = renderPlainPrompt(req.Messages)
	}
	if n, ok := m.engine.TokenCount(ctx, prompt); ok {
		return n
	}
	return provider.EstimateRequestTokens(req.Messages, req.Schema)
}

func (m *Model) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := tracing.StartGenerate(ctx, Provider, m.modelID, req.MaxTokens, req.Temperature, req.TopP)

	prompt, err := renderPrompt(req.Messages, req.Template)
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, fmt.Errorf("local: render chat template: %w", err)
	}

	var gbnf string
	if req.Strategy == provider.StrategyGrammar {
		g, err := schemaToGrammar(req.Schema)
		if err != nil {
			span.End("error", 0, 0, err)
			return provider.Response{}, fmt.Errorf("local: compile grammar: %w", err)
		}
		gbnf = g
	}
	if req.Strategy == provider.StrategyPrefill {
		prompt += "\n" + prefillOpenBrace
	}

	resp, err := m.engine.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		Grammar:     gbnf,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	})
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, fmt.Errorf("local: %w", err)
	}

	text := resp.Text
	if req.Strategy == provider.StrategyPrefill {
		text = prefillOpenBrace + text
	}

	out := provider.Response{
		Text:         text,
		RawFinish:    resp.StopReason,
		InputTokens:  resp.PromptTokens,
		OutputTokens: resp.CompletionTokens,
	}
	span.End(out.RawFinish, out.InputTokens, out.OutputTokens, nil)
	return out, nil
}

// schemaToGrammar compiles a request schema to GBNF text, falling back to
// grammar.GenericJSON when no schema is attached (the "free JSON" case
// from the dispatch rules: a generic JSON grammar still constrains
// decoding to syntactically valid JSON even with nothing to validate
// against).
func schemaToGrammar(schema map[string]any) (string, error) {
	if schema == nil {
		return grammar.GenericJSON(), nil
	}
	g, err := grammar.Compile(schema, nil)
	if err != nil {
		return "", err
	}
	return g.String(), nil
}

// renderPrompt flattens a wire message list into the raw prompt text a
// local completion server expects. When tmplText is set (a registry-
// resolved chat-template format), it is rendered against the message list;
// otherwise the plain role-prefixed transcript is used.
func renderPrompt(messages []provider.WireMessage, tmplText string) (string, error) {
	if tmplText == "" {
		return renderPlainPrompt(messages), nil
	}
	return renderTemplatedPrompt(tmplText, messages)
}

// renderPlainPrompt flattens a wire message list into a plain-text chat
// transcript, since a local completion server exposes a prompt string
// rather than a structured messages array. Image parts are dropped: the
// engines this package targets are text-only.
func renderPlainPrompt(messages []provider.WireMessage) string {
	var out string
	for _, m := range messages {
		out += fmt.Sprintf("%s: %s\n", m.Role, messageText(m))
	}
	out += "assistant: "
	return out
}

// chatTemplateMessage is one role-tagged message as exposed to a chat
// template.
type chatTemplateMessage struct {
	Role    string
	Content string
}

// chatTemplateData is the data a chat template is rendered against: a
// role-tagged message list plus the generation-prompt flag every chat
// template format (ChatML, Llama-2, Alpaca, ...) branches on to know
// whether to open the assistant's turn.
type chatTemplateData struct {
	Messages            []chatTemplateMessage
	AddGenerationPrompt bool
}

// renderTemplatedPrompt renders tmplText (a Go text/template, the Go
// idiom for the Jinja-style chat templates this registry format directory
// names) against messages.
func renderTemplatedPrompt(tmplText string, messages []provider.WireMessage) (string, error) {
	tmpl, err := template.New("chat").Parse(tmplText)
	if err != nil {
		return "", fmt.Errorf("parse chat template: %w", err)
	}

	data := chatTemplateData{AddGenerationPrompt: true}
	for _, m := range messages {
		data.Messages = append(data.Messages, chatTemplateMessage{Role: m.Role, Content: messageText(m)})
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return buf.String(), nil
}

// messageText reads a wire message's text, falling back to concatenating
// its text parts (image parts are dropped: the engines this package
// targets are text-only).
func messageText(m provider.WireMessage) string {
	if m.Text != "" {
		return m.Text
	}
	var text string
	for _, p := range m.Parts {
		if p.Type == "text" {
			text += p.Text
		}
	}
	return text
}
