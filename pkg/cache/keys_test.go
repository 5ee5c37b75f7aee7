package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListTotalKeyDeterministic(t *testing.T) {
	a := ListTotalKey("posts", map[string]interface{}{"published": true, "views": 10})
	b := ListTotalKey("posts", map[string]interface{}{"views": 10, "published": true})
	assert.Equal(t, a, b, "filter map ordering must not change the key")
	assert.True(t, strings.HasPrefix(a, "list_total:"))
}

func TestListTotalKeyDiscriminates(t *testing.T) {
	base := ListTotalKey("posts", nil)

	assert.NotEqual(t, base, ListTotalKey("authors", nil))
	assert.NotEqual(t, base, ListTotalKey("posts", map[string]interface{}{"published": true}))
	assert.NotEqual(t,
		ListTotalKey("posts", map[string]interface{}{"published": true}),
		ListTotalKey("posts", map[string]interface{}{"published": false}))
}

func TestTableTag(t *testing.T) {
	assert.Equal(t, "table:posts", TableTag("posts"))
	assert.Equal(t, "table:posts", TableTag("Posts"))
}
