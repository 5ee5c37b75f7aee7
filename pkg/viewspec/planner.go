package viewspec

import (
	"sort"

	"github.com/viewspec/viewspec/pkg/schema"
)

// BaseQuery is the planned projection for the owning table: the minimal
// base-column set plus the foreign-key joins required to satisfy the
// requested fields. Joins are always LEFT OUTER so a missing related row
// never excludes the base row.
type BaseQuery struct {
	// Columns are base-table column names, deduplicated and sorted.
	// Never empty: an empty selection degrades to the primary key.
	Columns []string
	// Joins are the foreign-key fields whose related resource must be
	// joined and fully selected, deduplicated by related resource and
	// sorted by field name. Minimal projection of joined columns is
	// deliberately not attempted.
	Joins []*schema.Field
}

// HasJoin reports whether the plan joins the given related resource.
func (b BaseQuery) HasJoin(resource string) bool {
	for _, j := range b.Joins {
		if j.Ref != nil && j.Ref.Name == resource {
			return true
		}
	}
	return false
}

// Prefetch is one secondary fetch to run after the base query: the
// relation's collection is loaded keyed by owning primary key and
// attached to each entity under AttrName. IDsOnly selects bare related
// identifiers instead of full entities.
type Prefetch struct {
	Relation *schema.Relation
	AttrName string
	IDsOnly  bool
}

// QueryPlan is the full read plan for one requested field set. Plans are
// built per request, consumed immediately and never cached.
type QueryPlan struct {
	Base       BaseQuery
	Prefetches []Prefetch
}

// BuildPlan derives the query plan from a requested field set in a
// single pass over the fields. It cannot fail: unknown names select
// nothing, and a fully-unknown set degrades to a primary-key-only
// selection.
func BuildPlan(res *schema.Resource, fields []string) QueryPlan {
	selected := make(map[string]struct{})
	joined := make(map[string]*schema.Field)
	var prefetches []Prefetch

	join := func(f *schema.Field) {
		if f.Ref == nil {
			return
		}
		if _, ok := joined[f.Ref.Name]; !ok {
			joined[f.Ref.Name] = f
		}
	}

	for _, name := range fields {
		switch d := Classify(res, name); d.Class {
		case ClassColumn, ClassForeignKeyID:
			selected[d.Field.Column] = struct{}{}
		case ClassEmbed:
			join(d.Field)
		case ClassProperty:
			for _, dep := range d.Deps {
				selected[dep.Column] = struct{}{}
				if dep.Kind == schema.KindForeignKey {
					join(dep)
				}
			}
		case ClassPrefetch:
			prefetches = append(prefetches, Prefetch{
				Relation: d.Relation,
				AttrName: d.Name,
				IDsOnly:  d.IDsOnly,
			})
		}
	}

	if len(selected) == 0 {
		selected[res.PK().Column] = struct{}{}
	}

	columns := make([]string, 0, len(selected))
	for col := range selected {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	joins := make([]*schema.Field, 0, len(joined))
	for _, f := range joined {
		joins = append(joins, f)
	}
	sort.Slice(joins, func(i, j int) bool { return joins[i].Name < joins[j].Name })

	return QueryPlan{Base: BaseQuery{Columns: columns, Joins: joins}, Prefetches: prefetches}
}
