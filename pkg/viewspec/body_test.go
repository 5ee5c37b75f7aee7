package viewspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBodyColumns(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"title":"hello","views":3,"id":99}`))
	data, syncs := DecodeBody(posts, body, true)

	assert.Equal(t, map[string]interface{}{"title": "hello", "views": float64(3)}, data)
	assert.Empty(t, syncs)
	assert.NotContains(t, data, "id", "primary key is never writable")
}

func TestDecodeBodyForeignKeySuffix(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"author_id":7}`))
	data, _ := DecodeBody(posts, body, true)
	assert.Equal(t, map[string]interface{}{"author_id": float64(7)}, data)
}

func TestDecodeBodyRelationSync(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"title":"t","tags_ids":[1,2,2,3]}`))
	data, syncs := DecodeBody(posts, body, true)

	assert.Equal(t, map[string]interface{}{"title": "t"}, data)
	require.Len(t, syncs, 1)
	assert.Equal(t, "tags", syncs[0].Relation.Name)
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, syncs[0].IDs, "duplicates collapse, order preserved")
}

func TestDecodeBodyRelationSyncRequiresList(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"tags_ids":"not-a-list"}`))
	data, syncs := DecodeBody(posts, body, true)
	assert.Empty(t, data)
	assert.Empty(t, syncs)
}

func TestDecodeBodyUnknownKeysDropped(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"bogus":"x","other_ids":[1]}`))
	data, syncs := DecodeBody(posts, body, true)
	assert.Empty(t, data)
	assert.Empty(t, syncs)
}

func TestDecodeBodyReadOnlySkipped(t *testing.T) {
	authors, _, _ := testResources()

	body := NewJSONBody([]byte(`{"id":5,"name":"a"}`))
	data, _ := DecodeBody(authors, body, false)
	assert.Equal(t, map[string]interface{}{"name": "a"}, data)
}

func TestJSONBodyNullExcluded(t *testing.T) {
	body := NewJSONBody([]byte(`{"title":"t","views":null}`))

	fields := body.Fields(false)
	assert.Equal(t, map[string]interface{}{"title": "t"}, fields)

	fields = body.Fields(true)
	assert.NotContains(t, fields, "views", "explicit null stays excluded on create")
}

func TestJSONBodyDefaultsOnlyOnCreate(t *testing.T) {
	body := NewJSONBody([]byte(`{"title":"t"}`)).
		WithDefaults(map[string]interface{}{"published": false, "title": "ignored"})

	onUpdate := body.Fields(false)
	assert.Equal(t, map[string]interface{}{"title": "t"}, onUpdate)

	onCreate := body.Fields(true)
	assert.Equal(t, map[string]interface{}{"title": "t", "published": false}, onCreate,
		"defaults fill unset keys without overriding set ones")
}

func TestDecodeBodyCreateAppliesDefaults(t *testing.T) {
	posts := testPosts()

	body := NewJSONBody([]byte(`{"title":"t"}`)).
		WithDefaults(map[string]interface{}{"published": true})

	data, _ := DecodeBody(posts, body, true)
	assert.Equal(t, map[string]interface{}{"title": "t", "published": true}, data)

	data, _ = DecodeBody(posts, body, false)
	assert.Equal(t, map[string]interface{}{"title": "t"}, data)
}
