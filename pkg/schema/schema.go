// Package schema defines the explicit resource descriptors consumed by the
// viewspec handlers. A Resource is built once at startup and treated as
// immutable afterwards; nothing in this package reflects over live structs.
package schema

import (
	"fmt"
	"sort"
	"time"
)

// ColumnType is the declared scalar type of a column or lookup value.
type ColumnType int

const (
	TypeInt ColumnType = iota
	TypeString
	TypeFloat
	TypeBool
	TypeTime
)

func (t ColumnType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeString:
		return "string"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeTime:
		return "time"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// FieldKind distinguishes plain columns from foreign-key columns.
// Many-to-many relations are not fields; they live in Resource.Relations.
type FieldKind int

const (
	KindColumn FieldKind = iota
	KindForeignKey
)

// Field describes one column of a resource. For foreign keys Name is the
// logical relation name (e.g. "category") while Column is the database
// column holding the referenced id (e.g. "category_id").
type Field struct {
	Name   string
	Column string
	Kind   FieldKind
	Type   ColumnType

	// Ref is the related resource for KindForeignKey fields.
	Ref *Resource

	Unique   bool
	ReadOnly bool

	// MaxLength is the declared maximum length accepted for writable
	// string fields. ColumnMaxLength is the capacity of the underlying
	// storage column; zero means unbounded (e.g. TEXT).
	MaxLength       int
	ColumnMaxLength int
}

// Relation describes a many-to-many relation carried through a join table.
type Relation struct {
	Name         string
	JoinTable    string
	SourceColumn string // join-table column referencing the owning resource's pk
	TargetColumn string // join-table column referencing Ref's pk
	Ref          *Resource
}

// Resource is the schema descriptor for one REST resource: its table, its
// columns, its many-to-many relations and the dependency graph of its
// computed properties.
type Resource struct {
	Name       string
	Table      string
	PrimaryKey string // field name of the primary key

	Fields    map[string]*Field
	Relations map[string]*Relation

	// Props maps a computed-property name to the field names its value
	// depends on. Dependencies that are foreign keys imply a join.
	Props map[string][]string

	// DefaultFields is the field set used when a request does not name
	// any fields. Empty means "all columns".
	DefaultFields []string
}

// PK returns the primary-key field. Callers must have validated the
// resource first; PK panics on a missing primary key.
func (r *Resource) PK() *Field {
	f, ok := r.Fields[r.PrimaryKey]
	if !ok {
		panic(fmt.Sprintf("schema: resource %s has no primary key field %q", r.Name, r.PrimaryKey))
	}
	return f
}

// Field looks up a field by logical name.
func (r *Resource) Field(name string) (*Field, bool) {
	f, ok := r.Fields[name]
	return f, ok
}

// Relation looks up a many-to-many relation by name.
func (r *Resource) Relation(name string) (*Relation, bool) {
	rel, ok := r.Relations[name]
	return rel, ok
}

// ColumnNames returns every database column of the resource, sorted.
func (r *Resource) ColumnNames() []string {
	cols := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		cols = append(cols, f.Column)
	}
	sort.Strings(cols)
	return cols
}

// FieldNames returns every logical field name, sorted.
func (r *Resource) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResponseFields resolves the field set for a read request: the explicit
// request set when non-empty, otherwise the schema default, otherwise all
// field names.
func (r *Resource) ResponseFields(requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	if len(r.DefaultFields) > 0 {
		return r.DefaultFields
	}
	return r.FieldNames()
}

// FullFields is the complete representation: every field, computed
// property and relation name. Mutations re-fetch with this set so the
// caller always receives the full entity regardless of what the request
// asked for.
func (r *Resource) FullFields() []string {
	names := r.FieldNames()
	props := make([]string, 0, len(r.Props))
	for name := range r.Props {
		props = append(props, name)
	}
	sort.Strings(props)
	names = append(names, props...)
	rels := make([]string, 0, len(r.Relations))
	for name := range r.Relations {
		rels = append(rels, name)
	}
	sort.Strings(rels)
	return append(names, rels...)
}

// Validate checks the construction-time invariants. A resource that fails
// validation must not serve requests; callers treat the error as fatal.
func (r *Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("schema: resource name is required")
	}
	if r.Table == "" {
		return fmt.Errorf("schema: resource %s has no table", r.Name)
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("schema: resource %s has no fields", r.Name)
	}
	if r.PrimaryKey == "" {
		return fmt.Errorf("schema: resource %s declares no primary key", r.Name)
	}
	if _, ok := r.Fields[r.PrimaryKey]; !ok {
		return fmt.Errorf("schema: resource %s primary key %q is not a field", r.Name, r.PrimaryKey)
	}
	for name, f := range r.Fields {
		if f == nil {
			return fmt.Errorf("schema: resource %s field %q is nil", r.Name, name)
		}
		if f.Name != name {
			return fmt.Errorf("schema: resource %s field %q registered under %q", r.Name, f.Name, name)
		}
		if f.Column == "" {
			return fmt.Errorf("schema: resource %s field %q has no column", r.Name, name)
		}
		if f.Kind == KindForeignKey && f.Ref == nil {
			return fmt.Errorf("schema: resource %s foreign key %q has no related resource", r.Name, name)
		}
		if err := validateFieldLength(r.Name, f); err != nil {
			return err
		}
	}
	for name, rel := range r.Relations {
		if rel == nil {
			return fmt.Errorf("schema: resource %s relation %q is nil", r.Name, name)
		}
		if rel.Name != name {
			return fmt.Errorf("schema: resource %s relation %q registered under %q", r.Name, rel.Name, name)
		}
		if rel.JoinTable == "" || rel.SourceColumn == "" || rel.TargetColumn == "" {
			return fmt.Errorf("schema: resource %s relation %q is missing join-table columns", r.Name, name)
		}
		if rel.Ref == nil {
			return fmt.Errorf("schema: resource %s relation %q has no related resource", r.Name, name)
		}
	}
	for prop, deps := range r.Props {
		if _, ok := r.Fields[prop]; ok {
			return fmt.Errorf("schema: resource %s property %q shadows a field", r.Name, prop)
		}
		for _, dep := range deps {
			if _, ok := r.Fields[dep]; !ok {
				return fmt.Errorf("schema: resource %s property %q depends on unknown field %q", r.Name, prop, dep)
			}
		}
	}
	return nil
}

// validateFieldLength enforces that a writable string field declares a
// maximum length no larger than what the storage column can hold. A
// missing declared length on a bounded column is an error too: it would
// let writes through that the database then truncates or rejects.
func validateFieldLength(resource string, f *Field) error {
	if f.Type != TypeString || f.ReadOnly || f.ColumnMaxLength <= 0 {
		return nil
	}
	if f.MaxLength <= 0 || f.MaxLength > f.ColumnMaxLength {
		return fmt.Errorf("schema: %s.%s max length not set or greater than storage column length %d",
			resource, f.Name, f.ColumnMaxLength)
	}
	return nil
}

// TypeOfValue maps a runtime value to its ColumnType. Unknown types map
// to TypeString so that non-numeric lookups route to secondary lookup
// fields, mirroring how untyped path parameters arrive.
func TypeOfValue(v any) ColumnType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt
	case float32, float64:
		return TypeFloat
	case bool:
		return TypeBool
	case time.Time:
		return TypeTime
	default:
		return TypeString
	}
}
