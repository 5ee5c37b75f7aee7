package viewspec

import (
	"reflect"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/schema"
)

// RelationSync is one many-to-many assignment decoded from a write
// payload: replace the relation's membership for the owning row with
// exactly IDs. An empty set means "clear the relation" on update and is
// skipped entirely on create.
type RelationSync struct {
	Relation *schema.Relation
	IDs      []interface{}
}

// DecodeBody turns a validated payload into base-table column
// assignments plus the relation syncs to apply afterwards. Read-only
// fields and the primary key are excluded first; on create every
// remaining key is taken (schema defaults included), on update only
// explicitly set, non-null keys. Keys matching nothing are silently
// dropped.
func DecodeBody(res *schema.Resource, body common.RequestBody, onCreate bool) (map[string]interface{}, []RelationSync) {
	data := make(map[string]interface{})
	var syncs []RelationSync

	payload := body.Fields(onCreate)
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := payload[key]
		if key == res.PrimaryKey {
			continue
		}
		if f, ok := res.Field(key); ok {
			if f.ReadOnly {
				continue
			}
			data[f.Column] = value
			continue
		}
		if stripped, ok := strings.CutSuffix(key, ManyToManySuffix); ok && isIterable(value) {
			if rel, found := res.Relation(stripped); found {
				syncs = append(syncs, RelationSync{Relation: rel, IDs: dedupValues(value)})
				continue
			}
		}
		if stripped, ok := strings.CutSuffix(key, ForeignKeySuffix); ok {
			if f, found := res.Field(stripped); found && f.Kind == schema.KindForeignKey && !f.ReadOnly {
				data[f.Column] = value
			}
		}
	}
	return data, syncs
}

func isIterable(v interface{}) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

// dedupValues collapses duplicate elements while preserving first
// occurrence order.
func dedupValues(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	seen := make(map[interface{}]struct{}, rv.Len())
	out := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item := rv.Index(i).Interface()
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// JSONBody adapts a raw JSON document to the RequestBody contract. gjson
// keeps the distinction between a key that is absent and a key set to
// null: null values are always excluded, absent keys only appear on
// create and only when a default is configured.
type JSONBody struct {
	raw      []byte
	defaults map[string]interface{}
}

// NewJSONBody wraps a raw JSON object payload.
func NewJSONBody(raw []byte) *JSONBody {
	return &JSONBody{raw: raw}
}

// WithDefaults attaches schema defaults applied for unset keys on create.
func (b *JSONBody) WithDefaults(defaults map[string]interface{}) *JSONBody {
	b.defaults = defaults
	return b
}

// Fields implements common.RequestBody.
func (b *JSONBody) Fields(includeUnset bool) map[string]interface{} {
	out := make(map[string]interface{})
	gjson.ParseBytes(b.raw).ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		out[key.String()] = value.Value()
		return true
	})
	if includeUnset {
		for key, def := range b.defaults {
			if _, ok := out[key]; !ok {
				out[key] = def
			}
		}
	}
	return out
}
