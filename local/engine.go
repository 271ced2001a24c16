package local

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jndiogo/sibila-go/internal/clientutils"
)

const DefaultBaseURL = "http://localhost:8080"

// HTTPEngine implements Engine against a llama.cpp-compatible completion
// server: POST /completion accepting a "grammar" field of raw GBNF text,
// and POST /tokenize for exact token counts.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
}

// NewHTTPEngine creates an engine pointed at a running llama.cpp server.
func NewHTTPEngine(baseURL string) *HTTPEngine {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPEngine{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{}}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	Grammar     string   `json:"grammar,omitempty"`
	NPredict    int      `json:"n_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Content          string `json:"content"`
	StoppedEOS       bool   `json:"stopped_eos"`
	StoppedLimit     bool   `json:"stopped_limit"`
	TokensEvaluated  int    `json:"tokens_evaluated"`
	TokensPredicted  int    `json:"tokens_predicted"`
}

func (e *HTTPEngine) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := clientutils.DoJSON[completionResponse](ctx, e.client, clientutils.JSONRequestConfig{
		URL: e.baseURL + "/completion",
		Body: completionRequest{
			Prompt:      req.Prompt,
			Grammar:     req.Grammar,
			NPredict:    req.MaxTokens,
			Temperature: req.Temperature,
			TopP:        req.TopP,
			Stop:        req.Stop,
		},
	})
	if err != nil {
		if statusErr, ok := err.(*clientutils.StatusError); ok {
			return CompletionResponse{}, fmt.Errorf("local: engine: %w", statusErr)
		}
		return CompletionResponse{}, fmt.Errorf("local: engine: transport: %w", err)
	}

	stopReason := "length"
	if resp.StoppedEOS {
		stopReason = "stop"
	}
	return CompletionResponse{
		Text:             resp.Content,
		StopReason:       stopReason,
		PromptTokens:     resp.TokensEvaluated,
		CompletionTokens: resp.TokensPredicted,
	}, nil
}

type tokenizeRequest struct {
	Content string `json:"content"`
}

type tokenizeResponse struct {
	Tokens []int `json:"tokens"`
}

func (e *HTTPEngine) TokenCount(ctx context.Context, text string) (int, bool) {
	resp, err := clientutils.DoJSON[tokenizeResponse](ctx, e.client, clientutils.JSONRequestConfig{
		URL:  e.baseURL + "/tokenize",
		Body: tokenizeRequest{Content: text},
	})
	if err != nil {
		return 0, false
	}
	return len(resp.Tokens), true
}
