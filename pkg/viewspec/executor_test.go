package viewspec

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viewspec/viewspec/pkg/cache"
	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/common/adapters/database"
	"github.com/viewspec/viewspec/pkg/config"
	"github.com/viewspec/viewspec/pkg/dbmanager"
	"github.com/viewspec/viewspec/pkg/schema"
)

// openTestDB opens an isolated in-memory sqlite database, creates the
// test tables and seeds a few rows.
func openTestDB(t *testing.T) common.Database {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	bunDB, err := dbmanager.Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	statements := []string{
		`CREATE TABLE authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(100) NOT NULL UNIQUE
		)`,
		`CREATE TABLE tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name VARCHAR(50) NOT NULL
		)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title VARCHAR(50) NOT NULL,
			slug VARCHAR(50) NOT NULL UNIQUE,
			views INTEGER NOT NULL DEFAULT 0,
			published BOOLEAN NOT NULL DEFAULT 0,
			author_id INTEGER REFERENCES authors(id)
		)`,
		`CREATE TABLE post_tags (
			post_id INTEGER NOT NULL REFERENCES posts(id),
			tag_id INTEGER NOT NULL REFERENCES tags(id),
			PRIMARY KEY (post_id, tag_id)
		)`,
		`INSERT INTO authors (id, name, email) VALUES
			(1, 'Ann', 'ann@example.com'),
			(2, 'Bob', 'bob@example.com')`,
		`INSERT INTO tags (id, name) VALUES (1, 'go'), (2, 'sql'), (3, 'web')`,
		`INSERT INTO posts (id, title, slug, views, published, author_id) VALUES
			(1, 'First', 'first', 10, 1, 1),
			(2, 'Second', 'second', 5, 0, 2),
			(3, 'Third', 'third', 0, 1, NULL)`,
		`INSERT INTO post_tags (post_id, tag_id) VALUES (1, 1), (1, 2), (2, 2)`,
	}
	for _, stmt := range statements {
		_, err := bunDB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return database.NewBunAdapter(bunDB, "sqlite")
}

func newPostHandler(t *testing.T, db common.Database, opts ...Option) *Handler {
	t.Helper()
	h, err := New(testPosts(), db, opts...)
	require.NoError(t, err)
	return h
}

func TestRetrieveMinimalFields(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	row, err := h.Retrieve(ctx, int64(1), []string{"title", "author_id"})
	require.NoError(t, err)

	assert.Equal(t, "First", row["title"])
	assert.EqualValues(t, 1, row["author_id"])
	assert.NotContains(t, row, "views")
	assert.NotContains(t, row, "author")
}

func TestRetrieveEmbedsForeignKey(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	row, err := h.Retrieve(ctx, int64(1), []string{"title", "author"})
	require.NoError(t, err)

	author, ok := row["author"].(map[string]interface{})
	require.True(t, ok, "author must fold into a nested map, got %T", row["author"])
	assert.Equal(t, "Ann", author["name"])
	assert.EqualValues(t, 1, author["id"])
}

func TestRetrieveEmbedNilWhenUnset(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	row, err := h.Retrieve(ctx, int64(3), []string{"title", "author"})
	require.NoError(t, err)
	assert.Nil(t, row["author"], "missing related row folds to nil")
}

func TestRetrievePrefetchesRelations(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	row, err := h.Retrieve(ctx, int64(1), []string{"title", "tags", "tags_ids"})
	require.NoError(t, err)

	tags, ok := row["tags"].([]interface{})
	require.True(t, ok)
	require.Len(t, tags, 2)
	first := tags[0].(map[string]interface{})
	assert.Equal(t, "go", first["name"])

	ids, ok := row["tags_ids"].([]interface{})
	require.True(t, ok)
	require.Len(t, ids, 2)
	assert.EqualValues(t, 1, ids[0])
	assert.EqualValues(t, 2, ids[1])
}

func TestRetrievePrefetchEmptyCollection(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	row, err := h.Retrieve(ctx, int64(3), []string{"tags"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, row["tags"], "no memberships means an empty slice, not nil")
}

func TestRetrieveBySecondaryLookup(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db,
		WithSecondaryLookup("slug"),
		WithLookupTypes(schema.TypeInt, schema.TypeString))
	ctx := context.Background()

	row, err := h.Retrieve(ctx, "second", []string{"title"})
	require.NoError(t, err)
	assert.Equal(t, "Second", row["title"])

	row, err = h.Retrieve(ctx, int64(1), []string{"title"})
	require.NoError(t, err)
	assert.Equal(t, "First", row["title"])
}

func TestRetrieveNotFound(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	_, err := h.Retrieve(context.Background(), int64(999), []string{"title"})
	require.Error(t, err)
	assert.IsType(t, &common.NotFoundError{}, err)
}

func TestListFiltersAndOrders(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	cur, err := h.List(ctx, map[string]interface{}{"published": "true"}, []string{"title"}, common.Pagination{})
	require.NoError(t, err)

	rows := cur.Collect()
	require.Len(t, rows, 2)
	assert.Equal(t, "First", rows[0]["title"])
	assert.Equal(t, "Third", rows[1]["title"])
	assert.Equal(t, 2, cur.Total())
}

func TestListUnknownFilterIgnored(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	cur, err := h.List(context.Background(), map[string]interface{}{"bogus": "x"}, []string{"title"}, common.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Total())
}

func TestListPagination(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	limit, offset := 1, 1
	cur, err := h.List(context.Background(), nil, []string{"title"},
		common.Pagination{Limit: &limit, Offset: &offset})
	require.NoError(t, err)

	rows := cur.Collect()
	require.Len(t, rows, 1)
	assert.Equal(t, "Second", rows[0]["title"])
	assert.Equal(t, 3, cur.Total(), "total counts all matches, not the page")
}

func TestListPrefetchesPerPage(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	cur, err := h.List(context.Background(), nil, []string{"title", "tags_ids"}, common.Pagination{})
	require.NoError(t, err)

	rows := cur.Collect()
	require.Len(t, rows, 3)
	assert.Len(t, rows[0]["tags_ids"], 2)
	assert.Len(t, rows[1]["tags_ids"], 1)
	assert.Equal(t, []interface{}{}, rows[2]["tags_ids"])
}

func TestCreate(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	body := NewJSONBody([]byte(`{"title":"Fourth","slug":"fourth","views":1,"published":true,"author_id":2,"tags_ids":[3,1]}`))
	row, err := h.Create(ctx, body)
	require.NoError(t, err)

	assert.EqualValues(t, 4, row["id"])
	assert.Equal(t, "Fourth", row["title"])
	author, ok := row["author"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Bob", author["name"])

	tags, ok := row["tags"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tags, 2)
}

func TestCreateSkipsEmptyRelationSync(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	body := NewJSONBody([]byte(`{"title":"Bare","slug":"bare","tags_ids":[]}`))
	row, err := h.Create(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, row["tags"])
}

func TestCreateEmptyBodyRejected(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	_, err := h.Create(context.Background(), NewJSONBody([]byte(`{}`)))
	require.Error(t, err)
	assert.IsType(t, &common.UnprocessableError{}, err)
}

func TestCreateRejectsOverlongString(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	long := strings.Repeat("x", 51)
	body := NewJSONBody([]byte(fmt.Sprintf(`{"title":%q,"slug":"long"}`, long)))
	_, err := h.Create(context.Background(), body)
	require.Error(t, err)
	assert.IsType(t, &common.UnprocessableError{}, err)
}

func TestUpdateColumnsAndRelations(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	body := NewJSONBody([]byte(`{"title":"First Edited","tags_ids":[3]}`))
	row, err := h.Update(ctx, int64(1), body)
	require.NoError(t, err)

	assert.Equal(t, "First Edited", row["title"])
	tags := row["tags"].([]interface{})
	require.Len(t, tags, 1)
	assert.Equal(t, "web", tags[0].(map[string]interface{})["name"])
}

func TestUpdateClearsRelationWithEmptySet(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	// Unlike create, an explicit empty set on update clears membership.
	row, err := h.Update(ctx, int64(1), NewJSONBody([]byte(`{"tags_ids":[]}`)))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, row["tags"])
}

func TestUpdateBySecondaryLookup(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db,
		WithSecondaryLookup("slug"),
		WithLookupTypes(schema.TypeInt, schema.TypeString))
	ctx := context.Background()

	row, err := h.Update(ctx, "second", NewJSONBody([]byte(`{"views":99}`)))
	require.NoError(t, err)
	assert.EqualValues(t, 2, row["id"], "slug lookup resolves to the real primary key")
	assert.EqualValues(t, 99, row["views"])
}

func TestUpdateEmptyBodyRefetches(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	// A payload that decodes to no columns and no relation assignments
	// issues no UPDATE; the row comes back unchanged.
	row, err := h.Update(context.Background(), int64(1), NewJSONBody([]byte(`{"bogus":1}`)))
	require.NoError(t, err)
	assert.Equal(t, "First", row["title"])
	assert.EqualValues(t, 10, row["views"])
}

func TestUpdateNotFound(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)

	_, err := h.Update(context.Background(), int64(999), NewJSONBody([]byte(`{"views":1}`)))
	require.Error(t, err)
	assert.IsType(t, &common.NotFoundError{}, err)
}

func TestDestroy(t *testing.T) {
	db := openTestDB(t)
	h := newPostHandler(t, db)
	ctx := context.Background()

	require.NoError(t, h.Destroy(ctx, int64(3)))

	_, err := h.Retrieve(ctx, int64(3), []string{"title"})
	assert.IsType(t, &common.NotFoundError{}, err)

	err = h.Destroy(ctx, int64(3))
	assert.IsType(t, &common.NotFoundError{}, err)
}

func TestListTotalCaching(t *testing.T) {
	db := openTestDB(t)
	provider := cache.NewMemoryProvider(nil)
	h := newPostHandler(t, db, WithCache(provider))
	ctx := context.Background()

	cur, err := h.List(ctx, nil, []string{"title"}, common.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Total())

	// A write bypassing the handler does not invalidate the cached total.
	_, err = db.Exec(ctx, `INSERT INTO posts (title, slug) VALUES ('Sneaky', 'sneaky')`)
	require.NoError(t, err)

	cur, err = h.List(ctx, nil, []string{"title"}, common.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Total(), "total served from cache")

	// A handler mutation invalidates the tag and the next list recounts.
	_, err = h.Create(ctx, NewJSONBody([]byte(`{"title":"Fifth","slug":"fifth"}`)))
	require.NoError(t, err)

	cur, err = h.List(ctx, nil, []string{"title"}, common.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 5, cur.Total())
}
