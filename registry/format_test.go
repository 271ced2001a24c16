package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveFormatByName(t *testing.T) {
	r := newTestRegistry(t)
	f, err := r.ResolveFormat("chatml", "")
	require.NoError(t, err)
	assert.Contains(t, f.Template, "<|im_start|>")
}

func TestResolveFormatByModelPatternDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	// "hermes-2-pro" matches chatml's pattern list; chatml is declared
	// before the catch-all "plain" entry, so first-match-wins resolves it
	// deterministically regardless of any other entries.
	f, err := r.ResolveFormat("", "hermes-2-pro")
	require.NoError(t, err)
	assert.Contains(t, f.Template, "<|im_start|>")
}

func TestResolveFormatUnmatchedModelFallsBackToCatchAll(t *testing.T) {
	r := newTestRegistry(t)
	f, err := r.ResolveFormat("", "totally-unmatched-model-xyz")
	require.NoError(t, err)
	assert.Contains(t, f.Template, "{{.Role}}: {{.Content}}")
}

func TestResolveFormatUnknownNameErrors(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.ResolveFormat("no-such-format", "")
	assert.Error(t, err)
}

func TestResolveFormatMatchesLlama2Models(t *testing.T) {
	r := newTestRegistry(t)
	f, err := r.ResolveFormat("", "Llama-2-70b-chat")
	require.NoError(t, err)
	assert.Contains(t, f.Template, "[INST]")
}
