package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/schema"
)

func personValidateSchema() *schema.Schema {
	return &schema.Schema{
		Type: "object",
		Properties: map[string]*schema.Schema{
			"name": {Type: "string"},
			"age":  {Type: "integer"},
		},
		PropertyOrder: []string{"name", "age"},
		Required:      []string{"name"},
	}
}

func TestValidateAcceptsConformingValue(t *testing.T) {
	err := schema.Validate(personValidateSchema(), map[string]any{"name": "Ada", "age": float64(36)})
	assert.NoError(t, err)
}

func TestValidateRejectsMissingRequiredProperty(t *testing.T) {
	err := schema.Validate(personValidateSchema(), map[string]any{"age": float64(36)})
	require.Error(t, err)
	var valueErr *schema.ValueError
	assert.ErrorAs(t, err, &valueErr)
}

func TestValidateRejectsWrongType(t *testing.T) {
	err := schema.Validate(personValidateSchema(), map[string]any{"name": "Ada", "age": "thirty-six"})
	require.Error(t, err)
	var valueErr *schema.ValueError
	assert.ErrorAs(t, err, &valueErr)
}

func TestValidateEnumRejectsNonMember(t *testing.T) {
	s := &schema.Schema{Type: "string", Enum: []any{"red", "green", "blue"}}
	err := schema.Validate(s, "purple")
	assert.Error(t, err)
}

func TestValidateEnumAcceptsMember(t *testing.T) {
	s := &schema.Schema{Type: "string", Enum: []any{"red", "green", "blue"}}
	err := schema.Validate(s, "green")
	assert.NoError(t, err)
}
