package schema_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/schema"
)

func TestNormalizeStripsTitleByDefault(t *testing.T) {
	s := &schema.Schema{Type: "string", Title: "Name"}
	out := schema.Normalize(s, schema.Options{})
	assert.Empty(t, out.Title)
	assert.Empty(t, out.Description)
}

func TestNormalizeSynthesisesDescriptionFromTitle(t *testing.T) {
	s := &schema.Schema{Type: "string", Title: "Name"}
	out := schema.Normalize(s, schema.Options{DescriptionFromTitle: true})
	assert.Empty(t, out.Title)
	assert.Equal(t, "Name", out.Description)
}

func TestNormalizeStripsDefaultsByDefault(t *testing.T) {
	s := &schema.Schema{Type: "string", Default: "hi", HasDefault: true}
	out := schema.Normalize(s, schema.DefaultOptions())
	assert.False(t, out.HasDefault)
	assert.Nil(t, out.Default)
}

func TestNormalizeForceRequiredAddsAllProperties(t *testing.T) {
	s := &schema.Schema{
		Type:          "object",
		Properties:    map[string]*schema.Schema{"a": {Type: "string"}, "b": {Type: "integer"}},
		PropertyOrder: []string{"a", "b"},
	}
	out := schema.Normalize(s, schema.Options{ForceRequired: true})
	assert.ElementsMatch(t, []string{"a", "b"}, out.Required)
}

func TestNormalizeCollapsesSingleElementUnion(t *testing.T) {
	s := &schema.Schema{
		AnyOf: []*schema.Schema{{Type: "string", Description: "inner"}},
	}
	out := schema.Normalize(s, schema.Options{CollapseSingleUnion: true})
	assert.Equal(t, "string", out.Type)
	assert.Nil(t, out.AnyOf)
}

func TestNormalizeRestrictsRootKeysOnToMap(t *testing.T) {
	s := &schema.Schema{
		Type:        "object",
		Title:       "Person",
		Description: "a person",
		Properties:  map[string]*schema.Schema{"name": {Type: "string", Enum: []any{"a", "b"}}},
	}
	out := schema.Normalize(s, schema.Options{})

	m := out.ToMap()
	_, hasTitle := m["title"]
	assert.False(t, hasTitle)
	assert.Equal(t, "a person", m["description"])

	// Nested schemas are unaffected: a property's own "enum" key survives
	// even though "enum" is not a root-allowed key.
	props := m["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	assert.Equal(t, []any{"a", "b"}, name["enum"])
}

func TestNormalizeRootKeyRestrictionHonoursExtraRootKeys(t *testing.T) {
	s := &schema.Schema{Type: "object", Enum: []any{"x"}}
	out := schema.Normalize(s, schema.Options{ExtraRootKeys: []string{"enum"}})

	m := out.ToMap()
	assert.Equal(t, []any{"x"}, m["enum"])
}

func TestToMapOnUnnormalizedSchemaRendersEveryKey(t *testing.T) {
	// A schema built straight from a caller-supplied document (never passed
	// through Normalize) is not root-restricted: "enum" at the root, which
	// rootAllowedKeys does not list, still renders.
	s, err := schema.FromMap(map[string]any{
		"type": "string",
		"enum": []any{"a", "b"},
	})
	require.NoError(t, err)

	m := s.ToMap()
	assert.Equal(t, []any{"a", "b"}, m["enum"])
}

func TestNormalizeInlinesRefs(t *testing.T) {
	s := &schema.Schema{
		Type:  "array",
		Items: &schema.Schema{Ref: "#/$defs/item"},
		Defs:  map[string]*schema.Schema{"item": {Type: "string"}},
	}
	out := schema.Normalize(s, schema.Options{})
	assert.Nil(t, out.Defs)
	items := out.Items
	assert.NotNil(t, items)
	assert.Equal(t, "string", items.Type)
	assert.Empty(t, items.Ref)

	want := &schema.Schema{Type: "array", Items: &schema.Schema{Type: "string"}, RootRestricted: true}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("normalized schema tree mismatch (-want +got):\n%s", diff)
	}
}
