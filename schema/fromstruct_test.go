package schema_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jndiogo/sibila-go/schema"
)

type book struct {
	Title   string   `json:"title" desc:"The book's title."`
	Pages   int      `json:"pages" desc:"Page count."`
	Tags    []string `json:"tags"`
	Ignored string   `json:"-"`
	private string
}

func TestFromStructDerivesFieldsFromTags(t *testing.T) {
	target := schema.FromStruct(reflect.TypeOf(book{}), "a library record")
	require.Equal(t, schema.KindRecord, target.Kind)
	require.Len(t, target.Fields, 3)

	byName := map[string]schema.Field{}
	for _, f := range target.Fields {
		byName[f.Name] = f
	}

	title, ok := byName["title"]
	require.True(t, ok)
	assert.Equal(t, schema.KindString, title.Target.Kind)
	assert.Equal(t, "The book's title.", title.Description)

	pages, ok := byName["pages"]
	require.True(t, ok)
	assert.Equal(t, schema.KindInt, pages.Target.Kind)

	tags, ok := byName["tags"]
	require.True(t, ok)
	assert.Equal(t, schema.KindList, tags.Target.Kind)
	require.NotNil(t, tags.Target.Elem)
	assert.Equal(t, schema.KindString, tags.Target.Elem.Kind)

	_, hasIgnored := byName["Ignored"]
	assert.False(t, hasIgnored)
}

func TestFromStructSetsGoType(t *testing.T) {
	target := schema.FromStruct(reflect.TypeOf(book{}), "")
	assert.Equal(t, reflect.TypeOf(book{}), target.GoType)
}

func TestFromStructDereferencesPointer(t *testing.T) {
	target := schema.FromStruct(reflect.TypeOf(&book{}), "")
	assert.Equal(t, schema.KindRecord, target.Kind)
	assert.Equal(t, reflect.TypeOf(book{}), target.GoType)
}
