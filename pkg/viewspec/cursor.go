package viewspec

// Entity is one resource row as returned to callers. Embedded relations
// appear as nested maps, prefetched collections as slices under the
// requested attribute name.
type Entity = map[string]interface{}

// prefetchResult holds one relation's batched fetch, keyed by the owning
// row's primary key.
type prefetchResult struct {
	attrName string
	byOwner  map[interface{}][]interface{}
}

// Cursor is a once-consumable sequence over a list result. Prefetched
// relation collections are merged onto each entity lazily as the cursor
// advances; a cursor is produced once per request and cannot be
// restarted.
type Cursor struct {
	rows     []Entity
	merges   []prefetchResult
	pkColumn string
	total    int
	pos      int
	consumed bool
}

func newCursor(rows []Entity, merges []prefetchResult, pkColumn string, total int) *Cursor {
	return &Cursor{rows: rows, merges: merges, pkColumn: pkColumn, total: total, pos: -1}
}

// Next advances to the next entity, merging any prefetched relation
// collections onto it. It returns false once the sequence is exhausted;
// the cursor stays exhausted afterwards.
func (c *Cursor) Next() bool {
	if c.consumed || c.pos+1 >= len(c.rows) {
		c.consumed = true
		return false
	}
	c.pos++
	row := c.rows[c.pos]
	if len(c.merges) > 0 {
		key := normalizeKey(row[c.pkColumn])
		for _, m := range c.merges {
			items := m.byOwner[key]
			if items == nil {
				items = []interface{}{}
			}
			row[m.attrName] = items
		}
	}
	return true
}

// Entity returns the current entity. Valid only after a true Next.
func (c *Cursor) Entity() Entity {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

// Total is the number of rows matching the query before pagination.
func (c *Cursor) Total() int {
	return c.total
}

// Len is the number of rows in this page.
func (c *Cursor) Len() int {
	return len(c.rows)
}

// Collect drains the remainder of the cursor into a slice. Like any
// other consumption it works once.
func (c *Cursor) Collect() []Entity {
	out := make([]Entity, 0, len(c.rows))
	for c.Next() {
		out = append(out, c.Entity())
	}
	return out
}

// normalizeKey folds the integer widths drivers hand back into int64 so
// prefetch maps keyed by scanned join-table values match scanned base
// row keys.
func normalizeKey(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		// Some drivers surface integer keys as float64.
		if n == float64(int64(n)) {
			return int64(n)
		}
		return n
	case []byte:
		return string(n)
	default:
		return v
	}
}
