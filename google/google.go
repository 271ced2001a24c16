// Package google implements a structured-output adapter for Gemini's
// generateContent API, using Gemini's native response_schema field.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jndiogo/sibila-go/internal/clientutils"
	"github.com/jndiogo/sibila-go/internal/tracing"
	"github.com/jndiogo/sibila-go/provider"
)

const (
	Provider       = "google"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	defaultContextLength = 1000000
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
	return []provider.Strategy{provider.StrategyResponseFormatSchema, provider.StrategyPromptOnly}
}

func (m *Model) Generate(ctx context.Context, req provider.Request) (provider.Response, error) {
	ctx, span := tracing.StartGenerate(ctx, Provider, m.modelID, req.MaxTokens, req.Temperature, req.TopP)

	system, contents, err := convertMessages(req.Messages)
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, fmt.Errorf("google: build request: %w", err)
	}

	body := generateContentRequest{Contents: contents}
	if system != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: system}}}
	}

	genConfig := &generationConfig{
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
		TopP:            req.TopP,
		StopSequences:   req.Stop,
	}
	if req.Strategy == provider.StrategyResponseFormatSchema {
		genConfig.ResponseMIMEType = "application/json"
		genConfig.ResponseSchema = req.Schema
	}
	body.GenerationConfig = genConfig

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", m.baseURL, m.modelID, m.apiKey)
	resp, err := clientutils.DoJSON[generateContentResponse](ctx, m.client, clientutils.JSONRequestConfig{
		URL:  url,
		Body: body,
	})
	if err != nil {
		span.End("error", 0, 0, err)
		return provider.Response{}, mapTransportError(err)
	}
	if len(resp.Candidates) == 0 {
		err := fmt.Errorf("google: response has no candidates")
		span.End("error", 0, 0, err)
		return provider.Response{}, err
	}

	candidate := resp.Candidates[0]
	text := ""
	for _, p := range candidate.Content.Parts {
		text += p.Text
	}

	out := provider.Response{
		Text:         text,
		RawFinish:    candidate.FinishReason,
		InputTokens:  resp.UsageMetadata.PromptTokenCount,
		OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
	}
	span.End(out.RawFinish, out.InputTokens, out.OutputTokens, nil)
	return out, nil
}

func mapTransportError(err error) error {
	if statusErr, ok := err.(*clientutils.StatusError); ok {
		return fmt.Errorf("google: %w", statusErr)
	}
	return fmt.Errorf("google: transport: %w", err)
}

func convertMessages(messages []provider.WireMessage) (system string, out []content, err error) {
	for _, m := range messages {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		c := content{Role: role}
		if len(m.Parts) == 0 {
			c.Parts = []part{{Text: m.Text}}
		} else {
			for _, p := range m.Parts {
				switch p.Type {
				case "text":
					c.Parts = append(c.Parts, part{Text: p.Text})
				case "image_url":
					mimeType, data := splitDataURL(p.ImageURL)
					c.Parts = append(c.Parts, part{InlineData: &inlineData{MimeType: mimeType, Data: data}})
				default:
					return "", nil, fmt.Errorf("google: unsupported content part type %q", p.Type)
				}
			}
		}
		out = append(out, c)
	}
	return system, out, nil
}

// splitDataURL extracts the MIME type and base64 payload from a
// "data:<mime>;base64,<data>" URL. A non-data URL (a bare remote image
// reference) is passed through as the data field best-effort, since
// Gemini's inlineData does not itself fetch remote URLs.
func splitDataURL(url string) (mimeType, data string) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "application/octet-stream", url
	}
	rest := url[len(prefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "application/octet-stream", url
	}
	header := rest[:comma]
	mimeType = strings.TrimSuffix(header, ";base64")
	return mimeType, rest[comma+1:]
}
