package google_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/google"
	"github.com/jndiogo/sibila-go/provider"
)

func TestGenerateSetsResponseSchemaOnStrategy(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"finishReason": "STOP",
				"content":      map[string]any{"parts": []map[string]any{{"text": `{"name":"Ada"}`}}},
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 7, "candidatesTokenCount": 3},
		})
	}))
	defer srv.Close()

	model := google.New("gemini-1.5-pro", google.Options{APIKey: "test-key", BaseURL: srv.URL})
	resp, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
		Strategy: provider.StrategyResponseFormatSchema,
		Schema:   map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ada"}`, resp.Text)
	assert.Equal(t, "STOP", resp.RawFinish)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, 3, resp.OutputTokens)

	genConfig, ok := capturedBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", genConfig["responseMimeType"])
}

func TestGenerateMapsAssistantRoleToModel(t *testing.T) {
	var capturedBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"finishReason": "STOP",
				"content":      map[string]any{"parts": []map[string]any{{"text": "ok"}}},
			}},
			"usageMetadata": map[string]any{},
		})
	}))
	defer srv.Close()

	model := google.New("gemini-1.5-pro", google.Options{APIKey: "k", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{
			{Role: "assistant", Text: "previous reply"},
			{Role: "user", Text: "follow up"},
		},
	})
	require.NoError(t, err)

	contents, ok := capturedBody["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 2)
	first := contents[0].(map[string]any)
	assert.Equal(t, "model", first["role"])
}

func TestGenerateNoCandidatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []map[string]any{}})
	}))
	defer srv.Close()

	model := google.New("gemini-1.5-pro", google.Options{APIKey: "k", BaseURL: srv.URL})
	_, err := model.Generate(context.Background(), provider.Request{
		Messages: []provider.WireMessage{{Role: "user", Text: "hi"}},
	})
	assert.Error(t, err)
}
