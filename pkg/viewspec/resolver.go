package viewspec

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/schema"
)

// predicate is a single equality condition against a base-table column.
type predicate struct {
	column string
	value  interface{}
}

// lookupPredicate selects between the primary key and the configured
// secondary unique lookup field based on the runtime type of the
// supplied value. An endpoint configured with an int primary key and a
// string slug field routes integers to the pk and strings to the slug.
func (e *executor) lookupPredicate(pk interface{}) predicate {
	if e.secondary != nil && schema.TypeOfValue(pk) != e.pkTypes[0] {
		return predicate{column: e.secondary.Column, value: pk}
	}
	return predicate{column: e.res.PK().Column, value: pk}
}

// filterPredicates resolves client filter parameters into equality
// predicates. Unknown field names are silently ignored; the result is
// sorted by column for deterministic SQL.
func (e *executor) filterPredicates(filters map[string]interface{}) []predicate {
	if len(filters) == 0 {
		return nil
	}
	preds := make([]predicate, 0, len(filters))
	for name, value := range filters {
		if f, ok := e.res.Field(name); ok {
			preds = append(preds, predicate{column: f.Column, value: coerceValue(f.Type, value)})
		}
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].column < preds[j].column })
	return preds
}

// applyFilters ANDs the resolved predicates onto a select query. With no
// valid filters the query passes through unmodified.
func (e *executor) applyFilters(q common.SelectQuery, filters map[string]interface{}) common.SelectQuery {
	for _, p := range e.filterPredicates(filters) {
		q = q.Where(fmt.Sprintf("%s.%s = ?", quoteIdent(e.res.Table), quoteIdent(p.column)), p.value)
	}
	return q
}

// coerceValue converts a string filter value to the column's declared
// type so query parameters compare against typed columns correctly.
// Unconvertible values pass through untouched and simply match nothing.
func coerceValue(t schema.ColumnType, value interface{}) interface{} {
	s, ok := value.(string)
	if !ok {
		return value
	}
	switch t {
	case schema.TypeInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case schema.TypeFloat:
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case schema.TypeBool:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return value
}

// validateLookup enforces the construction-time constraints on the
// secondary lookup configuration. Violations are fatal configuration
// errors, not request-time failures.
func validateLookup(res *schema.Resource, secondary *schema.Field, pkTypes []schema.ColumnType) error {
	if secondary == nil {
		return nil
	}
	if len(pkTypes) < 2 {
		return common.Configf("resource %s: secondary lookup field %q requires more than one lookup type choice",
			res.Name, secondary.Name)
	}
	if !secondary.Unique {
		return common.Configf("resource %s: secondary lookup field %q is not unique", res.Name, secondary.Name)
	}
	return nil
}
