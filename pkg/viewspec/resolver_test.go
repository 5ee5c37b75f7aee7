package viewspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewspec/viewspec/pkg/schema"
)

func testExecutor(secondary string, pkTypes ...schema.ColumnType) *executor {
	posts := testPosts()
	e := &executor{res: posts, pkTypes: pkTypes}
	if len(pkTypes) == 0 {
		e.pkTypes = []schema.ColumnType{schema.TypeInt}
	}
	if secondary != "" {
		f, ok := posts.Field(secondary)
		if !ok {
			panic("unknown secondary field " + secondary)
		}
		e.secondary = f
	}
	return e
}

func TestLookupPredicateRoutesByType(t *testing.T) {
	e := testExecutor("slug", schema.TypeInt, schema.TypeString)

	p := e.lookupPredicate(int64(42))
	assert.Equal(t, "id", p.column)
	assert.Equal(t, int64(42), p.value)

	p = e.lookupPredicate("my-post")
	assert.Equal(t, "slug", p.column)
	assert.Equal(t, "my-post", p.value)
}

func TestLookupPredicateWithoutSecondary(t *testing.T) {
	e := testExecutor("")

	// No secondary lookup configured: everything addresses the pk.
	p := e.lookupPredicate("my-post")
	assert.Equal(t, "id", p.column)
}

func TestFilterPredicatesSortedAndCoerced(t *testing.T) {
	e := testExecutor("")

	preds := e.filterPredicates(map[string]interface{}{
		"views":     "10",
		"published": "true",
		"bogus":     "dropped",
	})
	require.Len(t, preds, 2)
	assert.Equal(t, "published", preds[0].column)
	assert.Equal(t, true, preds[0].value)
	assert.Equal(t, "views", preds[1].column)
	assert.Equal(t, int64(10), preds[1].value)
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name  string
		typ   schema.ColumnType
		in    interface{}
		want  interface{}
	}{
		{"int string", schema.TypeInt, "42", int64(42)},
		{"float string", schema.TypeFloat, "1.5", 1.5},
		{"bool string", schema.TypeBool, "true", true},
		{"string passes through", schema.TypeString, "abc", "abc"},
		{"non-string passes through", schema.TypeInt, int64(7), int64(7)},
		{"unparsable passes through", schema.TypeInt, "not-a-number", "not-a-number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceValue(tt.typ, tt.in))
		})
	}
}

func TestValidateLookup(t *testing.T) {
	posts := testPosts()
	slug, _ := posts.Field("slug")
	title, _ := posts.Field("title")

	assert.NoError(t, validateLookup(posts, nil, []schema.ColumnType{schema.TypeInt}))
	assert.NoError(t, validateLookup(posts, slug, []schema.ColumnType{schema.TypeInt, schema.TypeString}))

	err := validateLookup(posts, slug, []schema.ColumnType{schema.TypeInt})
	assert.Error(t, err, "secondary lookup needs more than one lookup type")

	err = validateLookup(posts, title, []schema.ColumnType{schema.TypeInt, schema.TypeString})
	assert.Error(t, err, "secondary lookup field must be unique")
}
