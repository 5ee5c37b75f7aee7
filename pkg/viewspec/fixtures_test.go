package viewspec

import "github.com/viewspec/viewspec/pkg/schema"

// testResources builds the schema shared by the package tests: posts
// with an author foreign key, a tags relation and computed properties.
func testResources() (authors, tags, posts *schema.Resource) {
	authors = &schema.Resource{
		Name:       "author",
		Table:      "authors",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":    {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"name":  {Name: "name", Column: "name", Type: schema.TypeString, MaxLength: 100, ColumnMaxLength: 100},
			"email": {Name: "email", Column: "email", Type: schema.TypeString, Unique: true, MaxLength: 100, ColumnMaxLength: 100},
		},
	}

	tags = &schema.Resource{
		Name:       "tag",
		Table:      "tags",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":   {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"name": {Name: "name", Column: "name", Type: schema.TypeString, MaxLength: 50, ColumnMaxLength: 50},
		},
	}

	posts = &schema.Resource{
		Name:       "post",
		Table:      "posts",
		PrimaryKey: "id",
		Fields: map[string]*schema.Field{
			"id":        {Name: "id", Column: "id", Type: schema.TypeInt, ReadOnly: true},
			"title":     {Name: "title", Column: "title", Type: schema.TypeString, MaxLength: 50, ColumnMaxLength: 50},
			"slug":      {Name: "slug", Column: "slug", Type: schema.TypeString, Unique: true, MaxLength: 50, ColumnMaxLength: 50},
			"views":     {Name: "views", Column: "views", Type: schema.TypeInt},
			"published": {Name: "published", Column: "published", Type: schema.TypeBool},
			"author":    {Name: "author", Column: "author_id", Kind: schema.KindForeignKey, Type: schema.TypeInt, Ref: authors},
		},
		Relations: map[string]*schema.Relation{
			"tags": {
				Name:         "tags",
				JoinTable:    "post_tags",
				SourceColumn: "post_id",
				TargetColumn: "tag_id",
				Ref:          tags,
			},
		},
		Props: map[string][]string{
			"summary": {"title"},
			"byline":  {"title", "author"},
		},
	}
	return authors, tags, posts
}

func testPosts() *schema.Resource {
	_, _, posts := testResources()
	return posts
}
