// Package anthropic implements a structured-output adapter for Anthropic's
// Messages API, using Anthropic's forced tool-use to obtain schema-shaped
// JSON.
package anthropic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jndiogo/sibila-go/internal/clientutils"
	"github.com/jndiogo/sibila-go/internal/tracing"
	"github.com/jndiogo/sibila-go/provider"
)

const (
	Provider       = "anthropic"
	DefaultBaseURL = "https://api.anthropic.com/v1"
	apiVersion     = "2023-06-01"

	defaultContextLength = 200000
	defaultMaxTokens      = 4096
	toolName              = "emit_structured_output"
)

type Options struct {
	BaseURL       string
	APIKey        string
	ContextLength int
}

type Model struct {
	modelID       string
	apiKey        string
	baseURL       string
	contextLength int
	client        *http.Client
}

func New(modelID string, opts Options) *Model {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ctxLen := opts.ContextLength
	if ctxLen == 0 {
		ctxLen = defaultContextLength
	}
	return &Model{
		modelID:       modelID,
		apiKey:        opts.APIKey,
		baseURL:       baseURL,
		contextLength: ctxLen,
		client:        &http.Client{},
	}
}

func (m *Model) Provider() string   { return Provider }
func (m *Model) ModelID() string    { return m.modelID }
func (m *Model) ContextLength() int { return m.contextLength }

func (m *Model) SupportedStrategies() []provider.Strategy {
	return []provider.Strategy{provider.StrategyToolCall, provider.StrategyPromptOnly}
}

func (m *Model) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	ctx, span := tracing.StartGenerate(ctx, Provider, m.modelID, req.MaxTokens, req.Temperature, req.TopP)

	system, messages, err := convertMessages(req.Messages)
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, fmt.Errorf("anthropic: build request: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := messagesRequest{
		Model:       m.modelID,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		StopSeqs:    req.Stop,
	}

	if req.Strategy == provider.StrategyToolCall {
		name := req.SchemaName
		if name == "" {
			name = toolName
		}
		body.Tools = []tool{{Name: name, InputSchema: req.Schema}}
		body.ToolChoice = &toolChoice{Type: "tool", Name: name}
	}

	headers := map[string]string{
		"x-api-key":         m.apiKey,
		"anthropic-version": apiVersion,
	}
	resp, err := clientutils.DoJSON[messagesResponse](ctx, m.client, clientutils.JSONRequestConfig{
		URL:     m.baseURL + "/messages",
		Headers: headers,
		Body:    body,
	})
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, mapTransportError(err)
	}

	text := extractText(resp.Content)
	out := provider.Response{
		Text:         text,
		RawFinish:    resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	span.End(out.RawFinish, out.InputTokens, out.OutputTokens, nil)
	return out, nil
}

func mapTransportError(err error) error {
	if statusErr, ok := err.(*clientutils.StatusError); ok {
		return fmt.Errorf("anthropic: %w", statusErr)
	}
	return fmt.Errorf("anthropic: transport: %w", err)
}

func extractText(blocks []contentBlock) string {
	for _, b := range blocks {
		switch b.Type {
		case "tool_use":
			if encoded, err := marshalToolInput(b.Input); err == nil {
				return encoded
			}
		case "text":
			if b.Text != "" {
				return b.Text
			}
		}
	}
	return ""
}

func convertMessages(messages []provider.WireMessage) (system string, out []message, err error) {
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text
			continue
		}
		msg := message{Role: m.Role}
		if len(m.Parts) == 0 {
			msg.Content = []contentBlock{{Type: "text", Text: m.Text}}
		} else {
			for _, p := range m.Parts {
				switch p.Type {
				case "text":
					msg.Content = append(msg.Content, contentBlock{Type: "text", Text: p.Text})
				case "image_url":
					msg.Content = append(msg.Content, contentBlock{Type: "image", Source: &imageSource{Type: "url", URL: p.ImageURL}})
				default:
					return "", nil, fmt.Errorf("anthropic: unsupported content part type %q", p.Type)
				}
			}
		}
		out = append(out, msg)
	}
	return system, out, nil
}
