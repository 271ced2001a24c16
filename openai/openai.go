// Package openai implements a structured-output adapter for OpenAI's chat
// completions API, and doubles as the wiring point for every
// OpenAI-compatible remote backend (Mistral, Groq, Fireworks, Together):
// each is just this adapter pointed at a different base URL.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jndiogo/sibila-go/internal/clientutils"
	"github.com/jndiogo/sibila-go/internal/tracing"
	"github.com/jndiogo/sibila-go/provider"
)

const (
	Provider       = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"

	defaultContextLength = 128000
	toolName             = "emit_structured_output"
)

// Options configures a Model instance.
type Options struct {
	BaseURL       string
	APIKey        string
	ContextLength int
}

// Model is an OpenAI-compatible chat completions adapter. The same type
// serves OpenAI, Mistral, Groq, Fireworks and Together: only BaseURL and
// APIKey differ between them.
type Model struct {
	provider      string
	modelID       string
	apiKey        string
	baseURL       string
	contextLength int
	client        *http.Client
}

// New creates an adapter for the given model ID. providerName lets
// OpenAI-compatible backends report their own name (e.g. "groq") while
// reusing this request builder.
func New(providerName, modelID string, opts Options) *Model {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ctxLen := opts.ContextLength
	if ctxLen == 0 {
		ctxLen = defaultContextLength
	}
	return &Model{
		provider:      providerName,
		modelID:       modelID,
		apiKey:        opts.APIKey,
		baseURL:       baseURL,
		contextLength: ctxLen,
		client:        &http.Client{},
	}
}

func (m *Model) Provider() string   { return m.provider }
func (m *Model) ModelID() string    { return m.modelID }
func (m *Model) ContextLength() int { return m.contextLength }

func (m *Model) SupportedStrategies() []provider.Strategy {
	return []provider.Strategy{provider.StrategyToolCall, provider.StrategyResponseFormatSchema, provider.StrategyPromptOnly}
}

func (m *Model) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	ctx, span := tracing.StartGenerate(ctx, m.provider, m.modelID, req.MaxTokens, req.Temperature, req.TopP)

	body, err := buildRequestBody(m.modelID, req)
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, fmt.Errorf("openai: build request: %w", err)
	}

	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	resp, err := clientutils.DoJSON[chatCompletionResponse](ctx, m.client, clientutils.JSONRequestConfig{
		URL:     m.baseURL + "/chat/completions",
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, mapTransportError(m.provider, err)
	}
	if len(resp.Choices) == 0 {
		err := fmt.Errorf("openai: response has no choices")
		span.End("error", 0, 0, err)
		return provider.Response{}, err
	}

	choice := resp.Choices[0]
	text := choice.Message.Content
	if len(choice.Message.ToolCalls) > 0 {
		text = choice.Message.ToolCalls[0].Function.Arguments
	}

	out := provider.Response{
		Text:         text,
		RawFinish:    choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	span.End(out.RawFinish, out.InputTokens, out.OutputTokens, nil)
	return out, nil
}

func mapTransportError(providerName string, err error) error {
	if statusErr, ok := err.(*clientutils.StatusError); ok {
		return fmt.Errorf("openai(%s): %w", providerName, statusErr)
	}
	return fmt.Errorf("openai(%s): transport: %w", providerName, err)
}

func buildRequestBody(modelID string, req provider.Request) (chatCompletionRequest, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return chatCompletionRequest{}, err
	}

	body := chatCompletionRequest{
		Model:    modelID,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}
	body.Temperature = req.Temperature
	body.TopP = req.TopP
	if len(req.Stop) > 0 {
		body.Stop = req.Stop
	}

	switch req.Strategy {
	case provider.StrategyToolCall:
		name := req.SchemaName
		if name == "" {
			name = toolName
		}
		body.Tools = []tool{{
			Type: "function",
			Function: toolFunction{
				Name:       name,
				Parameters: req.Schema,
			},
		}}
		body.ToolChoice = &toolChoice{Type: "function", Function: toolChoiceFunction{Name: name}}
	case provider.StrategyResponseFormatSchema:
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   "structured_output",
				Schema: req.Schema,
				Strict: true,
			},
		}
	}
	return body, nil
}

func convertMessages(messages []provider.WireMessage) ([]chatMessage, error) {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		cm := chatMessage{Role: m.Role}
		if len(m.Parts) == 0 {
			cm.Text = m.Text
		} else {
			for _, p := range m.Parts {
				switch p.Type {
				case "text":
					cm.Parts = append(cm.Parts, contentPart{Type: "text", Text: p.Text})
				case "image_url":
					cm.Parts = append(cm.Parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: p.ImageURL}})
				default:
					return nil, fmt.Errorf("openai: unsupported content part type %q", p.Type)
				}
			}
		}
		out = append(out, cm)
	}
	return out, nil
}
