package viewspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlanMinimalProjection(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"title", "views", "title"})
	assert.Equal(t, []string{"title", "views"}, plan.Base.Columns)
	assert.Empty(t, plan.Base.Joins)
	assert.Empty(t, plan.Prefetches)
}

func TestBuildPlanForeignKeyIDSelectsColumnWithoutJoin(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"author_id"})
	assert.Equal(t, []string{"author_id"}, plan.Base.Columns)
	assert.Empty(t, plan.Base.Joins, "fk id selection must not join")
}

func TestBuildPlanEmbedJoins(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"author"})
	require.Len(t, plan.Base.Joins, 1)
	assert.Equal(t, "author", plan.Base.Joins[0].Name)
	assert.True(t, plan.Base.HasJoin("author"))
	// Nothing selected a base column, so the plan falls back to the pk.
	assert.Equal(t, []string{"id"}, plan.Base.Columns)
}

func TestBuildPlanJoinDedup(t *testing.T) {
	posts := testPosts()

	// "author" embeds and "byline" depends on the author fk; the join
	// must appear once.
	plan := BuildPlan(posts, []string{"author", "byline"})
	assert.Len(t, plan.Base.Joins, 1)
	assert.Contains(t, plan.Base.Columns, "author_id")
	assert.Contains(t, plan.Base.Columns, "title")
}

func TestBuildPlanPropertyDeps(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"summary"})
	assert.Equal(t, []string{"title"}, plan.Base.Columns)
	assert.Empty(t, plan.Base.Joins)

	plan = BuildPlan(posts, []string{"byline"})
	assert.Equal(t, []string{"author_id", "title"}, plan.Base.Columns)
	require.Len(t, plan.Base.Joins, 1, "fk dependency forces a join")
	assert.Equal(t, "author", plan.Base.Joins[0].Name)
}

func TestBuildPlanUnknownFieldsDegradeToPK(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"nonexistent", "also_missing"})
	assert.Equal(t, []string{"id"}, plan.Base.Columns)
	assert.Empty(t, plan.Base.Joins)
	assert.Empty(t, plan.Prefetches)
}

func TestBuildPlanEmptySelectionDegradesToPK(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, nil)
	// With no default field set the resource resolves to all fields via
	// ResponseFields; BuildPlan itself receives what it is given, so an
	// empty list selects only the pk.
	assert.Equal(t, []string{"id"}, plan.Base.Columns)
}

func TestBuildPlanPrefetches(t *testing.T) {
	posts := testPosts()

	plan := BuildPlan(posts, []string{"tags", "tags_ids", "title"})
	require.Len(t, plan.Prefetches, 2)

	assert.Equal(t, "tags", plan.Prefetches[0].AttrName)
	assert.False(t, plan.Prefetches[0].IDsOnly)
	assert.Equal(t, "tags_ids", plan.Prefetches[1].AttrName)
	assert.True(t, plan.Prefetches[1].IDsOnly)
	assert.Equal(t, plan.Prefetches[0].Relation, plan.Prefetches[1].Relation)
}

func TestBuildPlanColumnsSortedAndStable(t *testing.T) {
	posts := testPosts()

	a := BuildPlan(posts, []string{"views", "title", "slug"})
	b := BuildPlan(posts, []string{"slug", "views", "title"})
	assert.Equal(t, a.Base.Columns, b.Base.Columns)
	assert.Equal(t, []string{"slug", "title", "views"}, a.Base.Columns)
}
