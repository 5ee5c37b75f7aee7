// Package viewspec implements generic, schema-bound REST resource
// handlers: requested output fields are resolved into minimal SQL
// projections, foreign-key joins and relation prefetches, and write
// payloads are decoded back into column assignments and relation syncs
// using the same field-name conventions.
package viewspec

import (
	"strings"

	"github.com/viewspec/viewspec/pkg/schema"
)

// Reserved field-name suffixes. "<fk>_id" requests the foreign-key
// identifier without embedding the related entity; "<relation>_ids"
// requests (or assigns) bare related identifiers.
const (
	ForeignKeySuffix = "_id"
	ManyToManySuffix = "_ids"
)

// FieldClass tags the outcome of classifying one requested field name.
type FieldClass int

const (
	// ClassColumn selects a plain base-table column.
	ClassColumn FieldClass = iota
	// ClassForeignKeyID selects the FK column itself, no join.
	ClassForeignKeyID
	// ClassProperty is a computed property; its column dependencies are
	// selected and FK dependencies force a join. Unknown names land here
	// with an empty dependency set and are thereby silently dropped.
	ClassProperty
	// ClassEmbed joins and fully selects the related model.
	ClassEmbed
	// ClassPrefetch requests a many-to-many collection via a secondary
	// fetch after the base query.
	ClassPrefetch
)

// DecodedField is the classification of a single requested field name.
// Exactly one of Field/Relation/Deps is populated depending on Class.
type DecodedField struct {
	Class    FieldClass
	Name     string // the original requested name, also the output attribute
	Field    *schema.Field
	Relation *schema.Relation
	Deps     []*schema.Field
	IDsOnly  bool
}

// Classify maps a requested field name onto the schema without side
// effects. Suffix conventions are resolved here and nowhere else; call
// sites switch on the returned class instead of re-checking strings.
func Classify(res *schema.Resource, name string) DecodedField {
	if f, ok := res.Field(name); ok {
		if f.Kind == schema.KindForeignKey {
			return DecodedField{Class: ClassEmbed, Name: name, Field: f}
		}
		return DecodedField{Class: ClassColumn, Name: name, Field: f}
	}

	if rel, ok := res.Relation(name); ok {
		return DecodedField{Class: ClassPrefetch, Name: name, Relation: rel}
	}
	if stripped, ok := strings.CutSuffix(name, ManyToManySuffix); ok {
		if rel, ok := res.Relation(stripped); ok {
			return DecodedField{Class: ClassPrefetch, Name: name, Relation: rel, IDsOnly: true}
		}
	}

	if stripped, ok := strings.CutSuffix(name, ForeignKeySuffix); ok {
		if f, ok := res.Field(stripped); ok && f.Kind == schema.KindForeignKey {
			return DecodedField{Class: ClassForeignKeyID, Name: name, Field: f}
		}
	}

	// Anything else is treated as a computed property. Names with no
	// dependency entry resolve to an empty set and select nothing.
	var deps []*schema.Field
	for _, dep := range res.Props[name] {
		if f, ok := res.Field(dep); ok {
			deps = append(deps, f)
		}
	}
	return DecodedField{Class: ClassProperty, Name: name, Deps: deps}
}
