package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/openai"
	"github.com/jndiogo/sibila-go/provider"
)

func TestGenerateSendsToolCallAndParsesResponse(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"tool_calls": []map[string]any{{
						"function": map[string]any{"name": "emit_structured_output", "arguments": `{"name":"Ada"}`},
					}},
				},
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}))
	defer srv.Close()

	model := openai.New("openai", "gpt-4o", openai.Options{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
		Strategy: provider.StrategyToolCall,
		Schema:   map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, resp.Text)
	assert.Equal(t, "tool_calls", resp.RawFinish)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)

	tools, ok := capturedBody["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
}

func TestGenerateResponseFormatSchemaStrategy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rf, ok := body["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_schema", rf["type"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"finish_reason": "stop",
				"message":       map[string]any{"content": `{"name":"Ada"}`},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1},
		})
	}))
	defer srv.Close()

	model := openai.New("openai", "gpt-4o", openai.Options{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
		Strategy: provider.StrategyResponseFormatSchema,
		Schema:   map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, resp.Text)
}

func TestGenerateNoChoicesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{}})
	}))
	defer srv.Close()

	model := openai.New("openai", "gpt-4o", openai.Options{APIKey: "test-key", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
	})
	assert.Error(t, err)
}

func TestGenerateSurfacesHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	model := openai.New("openai", "gpt-4o", openai.Options{APIKey: "bad-key", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
	})
	assert.Error(t, err)
}

func TestNewDefaultsContextLengthAndBaseURL(t *testing.T) {
	model := openai.New("groq", "llama-3.1-70b", openai.Options{APIKey: "k"})
	assert.Equal(t, "groq", model.Provider())
	assert.Equal(t, "llama-3.1-70b", model.ModelID())
	assert.Greater(t, model.ContextLength(), 0)
}
