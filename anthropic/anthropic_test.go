package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/anthropic"
	"github.com/jndiogo/sibila-go/provider"
)

func TestGenerateUsesForcedToolUse(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stop_reason": "tool_use",
			"content": []map[string]any{{
				"type":  "tool_use",
				"input": map[string]any{"name": "Ada"},
			}},
			"usage": map[string]any{"input_tokens": 12, "output_tokens": 6},
		})
	}))
	defer srv.Close()

	model := anthropic.New("claude-3-5-sonnet-latest", anthropic.Options{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
		Strategy: provider.StrategyToolCall,
		Schema:   map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ada"}`, resp.Text)
	assert.Equal(t, "tool_use", resp.RawFinish)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, 6, resp.OutputTokens)

	toolChoice, ok := capturedBody["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "tool", toolChoice["type"])
}

func TestGenerateFoldsSystemMessagesOutOfMessageList(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "hello"}},
			"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	model := anthropic.New("claude-3-5-sonnet-latest", anthropic.Options{APIKey: "k", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{
			{Role: "system", Text: "be concise"},
			{Role: "user", Text: "hi"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "be concise", capturedBody["system"])
	messages, ok := capturedBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 1)
}

func TestGenerateDefaultsMaxTokensWhenUnset(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "hi"}},
			"usage":       map[string]any{},
		})
	}))
	defer srv.Close()

	model := anthropic.New("claude-3-5-sonnet-latest", anthropic.Options{APIKey: "k", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Greater(t, capturedBody["max_tokens"].(float64), float64(0))
}

func TestGenerateSurfacesHTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer srv.Close()

	model := anthropic.New("claude-3-5-sonnet-latest", anthropic.Options{APIKey: "k", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
	})
	assert.Error(t, err)
}
