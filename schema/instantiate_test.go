package schema_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/schema"
)

func TestInstantiateUnwrapsWrappedPrimitive(t *testing.T) {
	plan := schema.Plan{Target: schema.String(""), Wrapped: true, WrapKey: "output"}
	got, err := schema.Instantiate(plan, map[string]any{"output": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestInstantiateWrappedMissingKeyErrors(t *testing.T) {
	plan := schema.Plan{Target: schema.String(""), Wrapped: true, WrapKey: "output"}
	_, err := schema.Instantiate(plan, map[string]any{"other": "hi"})
	assert.Error(t, err)
}

func TestInstantiateCoercesIntFromFloat64(t *testing.T) {
	plan := schema.Plan{Target: schema.Int("")}
	got, err := schema.Instantiate(plan, float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestInstantiateRejectsNonIntegralFloatForInt(t *testing.T) {
	plan := schema.Plan{Target: schema.Int("")}
	_, err := schema.Instantiate(plan, 42.5)
	assert.Error(t, err)
}

func TestInstantiateCoercesDateTime(t *testing.T) {
	plan := schema.Plan{Target: schema.DateTime("")}
	got, err := schema.Instantiate(plan, "2024-03-01T12:00:00Z")
	require.NoError(t, err)
	parsed, ok := got.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, parsed.Year())
}

func TestInstantiateEnumAcceptsMember(t *testing.T) {
	plan := schema.Plan{Target: schema.Enum("", "red", "green", "blue")}
	got, err := schema.Instantiate(plan, "green")
	require.NoError(t, err)
	assert.Equal(t, "green", got)
}

func TestInstantiateEnumRejectsNonMember(t *testing.T) {
	plan := schema.Plan{Target: schema.Enum("", "red", "green", "blue")}
	_, err := schema.Instantiate(plan, "purple")
	assert.Error(t, err)
}

func TestInstantiateListOfUntypedElements(t *testing.T) {
	plan := schema.Plan{Target: schema.List("", schema.String(""))}
	got, err := schema.Instantiate(plan, []any{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, got)
}

func TestInstantiateListElementErrorIncludesIndex(t *testing.T) {
	plan := schema.Plan{Target: schema.List("", schema.Int(""))}
	_, err := schema.Instantiate(plan, []any{float64(1), "oops"})
	assert.Error(t, err)
}

func TestInstantiateRecordWithoutGoTypeReturnsMap(t *testing.T) {
	target := schema.Record("", schema.Field{Name: "name", Target: schema.String("")})
	plan := schema.Plan{Target: target}
	got, err := schema.Instantiate(plan, map[string]any{"name": "Ada"})
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ada", m["name"])
}

func TestInstantiateRecordMissingRequiredFieldErrors(t *testing.T) {
	target := schema.Record("", schema.Field{Name: "name", Target: schema.String("")})
	plan := schema.Plan{Target: target}
	_, err := schema.Instantiate(plan, map[string]any{})
	assert.Error(t, err)
}

func TestInstantiateRecordAppliesFieldDefault(t *testing.T) {
	target := schema.Record("", schema.Field{Name: "role", Target: schema.String(""), Default: "guest", HasDefault: true})
	plan := schema.Plan{Target: target}
	got, err := schema.Instantiate(plan, map[string]any{})
	require.NoError(t, err)
	m, ok := got.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "guest", m["role"])
}

type recordWithGoType struct {
	Name string `json:"name"`
	Age  int64  `json:"age"`
}

func TestInstantiateRecordPopulatesGoTypeStruct(t *testing.T) {
	target := schema.FromStruct(reflect.TypeOf(recordWithGoType{}), "")
	plan := schema.Plan{Target: target}
	got, err := schema.Instantiate(plan, map[string]any{"name": "Ada", "age": float64(36)})
	require.NoError(t, err)
	person, ok := got.(recordWithGoType)
	require.True(t, ok)
	assert.Equal(t, recordWithGoType{Name: "Ada", Age: 36}, person)
}
