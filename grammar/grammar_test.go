package grammar_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/grammar"
)

func TestGenericJSONHasRootRule(t *testing.T) {
	g := grammar.GenericJSON()
	assert.True(t, strings.HasPrefix(g, "root"))
	assert.Contains(t, g, "object")
	assert.Contains(t, g, "array")
}

func TestCompileObjectSchemaProducesRootRule(t *testing.T) {
	schemaMap := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
			"age":  map[string]any{"type": "integer"},
		},
		"required": []any{"name", "age"},
	}
	g, err := grammar.Compile(schemaMap, nil)
	require.NoError(t, err)

	var root *grammar.Rule
	for i := range g.Rules {
		if g.Rules[i].Name == "root" {
			root = &g.Rules[i]
		}
	}
	require.NotNil(t, root)
	assert.Contains(t, root.Body, `"\"name\""`)
	assert.Contains(t, root.Body, `"\"age\""`)
}

func TestCompileEnumProducesLiteralAlternatives(t *testing.T) {
	schemaMap := map[string]any{"enum": []any{"red", "green", "blue"}}
	g, err := grammar.Compile(schemaMap, nil)
	require.NoError(t, err)
	require.NotEmpty(t, g.Rules)
	root := g.Rules[len(g.Rules)-1]
	assert.Contains(t, root.Body, `"\"red\""`)
	assert.Contains(t, root.Body, `"\"green\""`)
	assert.Contains(t, root.Body, `"\"blue\""`)
}

func TestCompileArraySchemaWrapsItemRule(t *testing.T) {
	schemaMap := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	g, err := grammar.Compile(schemaMap, nil)
	require.NoError(t, err)
	var root *grammar.Rule
	for i := range g.Rules {
		if g.Rules[i].Name == "root" {
			root = &g.Rules[i]
		}
	}
	require.NotNil(t, root)
	assert.Contains(t, root.Body, `"["`)
	assert.Contains(t, root.Body, `"]"`)
}

func TestCompileResolvesDefsRef(t *testing.T) {
	schemaMap := map[string]any{
		"$ref": "#/$defs/greeting",
		"$defs": map[string]any{
			"greeting": map[string]any{"type": "string"},
		},
	}
	g, err := grammar.Compile(schemaMap, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, g.Rules)
}

func TestCompileRejectsUnrecognisedType(t *testing.T) {
	schemaMap := map[string]any{"type": "whatsit"}
	_, err := grammar.Compile(schemaMap, nil)
	assert.Error(t, err)
}

func TestGrammarStringRendersNameBodyPerLine(t *testing.T) {
	g := &grammar.Grammar{Rules: []grammar.Rule{{Name: "root", Body: `"x"`}}}
	assert.Equal(t, "root ::= \"x\"\n", g.String())
}
