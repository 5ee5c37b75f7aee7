package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// List totals are cached under a hash of the table name and the resolved
// filter set, tagged per table so mutations can drop every total for a
// table in one call.

// CachedTotal is the serialized form of a cached list total.
type CachedTotal struct {
	Total int `json:"total"`
}

// ListTotalKey builds the cache key for a list total. Filters are
// serialized in sorted key order so equal filter sets hash equally.
func ListTotalKey(table string, filters map[string]interface{}) string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(table)
	for _, name := range names {
		b.WriteByte('|')
		b.WriteString(name)
		b.WriteByte('=')
		if raw, err := json.Marshal(filters[name]); err == nil {
			b.Write(raw)
		} else {
			fmt.Fprintf(&b, "%v", filters[name])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "list_total:" + hex.EncodeToString(sum[:])
}

// TableTag is the invalidation tag grouping every cached total for a
// table.
func TableTag(table string) string {
	return "table:" + strings.ToLower(table)
}
