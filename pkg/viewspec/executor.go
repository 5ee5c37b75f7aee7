package viewspec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viewspec/viewspec/pkg/cache"
	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/logger"
	"github.com/viewspec/viewspec/pkg/schema"
)

// joinAliasSep separates the relation name from the related column in
// the flat scan aliases produced for joined selects.
const joinAliasSep = "__"

// countCacheTTL bounds how stale a cached list total may get before the
// count query runs again.
const countCacheTTL = 5 * time.Minute

// executor runs the storage side of every operation for one resource.
// It is shared by all the capability implementations a Handler exposes.
type executor struct {
	res       *schema.Resource
	db        common.Database
	relations RelationStore
	cache     cache.Provider

	// secondary, when set, is the unique field non-primary-typed lookup
	// values route to. pkTypes[0] is the declared primary-key type.
	secondary *schema.Field
	pkTypes   []schema.ColumnType
}

// baseSelect builds the planned SELECT: aliased base columns, LEFT OUTER
// joins with their full related projections, and the primary key forced
// into the selection whenever prefetches need it to key their merges.
func (e *executor) baseSelect(plan QueryPlan) common.SelectQuery {
	table := quoteIdent(e.res.Table)
	pkCol := e.res.PK().Column

	columns := plan.Base.Columns
	if len(plan.Prefetches) > 0 && !containsString(columns, pkCol) {
		columns = append(append([]string{}, columns...), pkCol)
	}

	q := e.db.NewSelect().Table(e.res.Table)
	for _, col := range columns {
		q = q.ColumnExpr(fmt.Sprintf("%s.%s AS %s", table, quoteIdent(col), quoteIdent(col)))
	}
	for _, j := range plan.Base.Joins {
		alias := quoteIdent(j.Name)
		q = q.LeftJoin(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s",
			quoteIdent(j.Ref.Table), alias,
			alias, quoteIdent(j.Ref.PK().Column),
			table, quoteIdent(j.Column)))
		for _, col := range j.Ref.ColumnNames() {
			q = q.ColumnExpr(fmt.Sprintf("%s.%s AS %s",
				alias, quoteIdent(col), quoteIdent(j.Name+joinAliasSep+col)))
		}
	}
	return q
}

// foldJoins regroups the flat "<relation>__<column>" scan aliases into a
// nested map per joined relation. A joined row whose primary key scanned
// as nil means the LEFT OUTER join found nothing; the embed becomes nil.
func foldJoins(row Entity, joins []*schema.Field) {
	for _, j := range joins {
		nested := make(map[string]interface{})
		prefix := j.Name + joinAliasSep
		for _, col := range j.Ref.ColumnNames() {
			alias := prefix + col
			if v, ok := row[alias]; ok {
				nested[col] = v
				delete(row, alias)
			}
		}
		if nested[j.Ref.PK().Column] == nil {
			row[j.Name] = nil
			continue
		}
		row[j.Name] = nested
	}
}

func (e *executor) retrieve(ctx context.Context, pk interface{}, fields []string) (Entity, error) {
	plan := BuildPlan(e.res, e.res.ResponseFields(fields))

	p := e.lookupPredicate(pk)
	q := e.baseSelect(plan).
		Where(fmt.Sprintf("%s.%s = ?", quoteIdent(e.res.Table), quoteIdent(p.column)), p.value)

	row := make(Entity)
	if err := q.Scan(ctx, &row); err != nil {
		return nil, common.TranslateDBError(err)
	}
	foldJoins(row, plan.Base.Joins)

	if len(plan.Prefetches) > 0 {
		owner := row[e.res.PK().Column]
		for _, pf := range plan.Prefetches {
			byOwner, err := e.relations.FetchRelated(ctx, pf.Relation, []interface{}{owner}, pf.IDsOnly)
			if err != nil {
				return nil, err
			}
			items := byOwner[normalizeKey(owner)]
			if items == nil {
				items = []interface{}{}
			}
			row[pf.AttrName] = items
		}
	}
	return row, nil
}

func (e *executor) list(ctx context.Context, filters map[string]interface{}, fields []string, page common.Pagination) (*Cursor, error) {
	plan := BuildPlan(e.res, e.res.ResponseFields(fields))
	pkCol := e.res.PK().Column
	table := quoteIdent(e.res.Table)

	q := e.applyFilters(e.baseSelect(plan), filters).
		Order(fmt.Sprintf("%s.%s", table, quoteIdent(pkCol)))
	if page.Limit != nil {
		q = q.Limit(*page.Limit)
	}
	if page.Offset != nil {
		q = q.Offset(*page.Offset)
	}

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, common.TranslateDBError(err)
	}
	entities := make([]Entity, len(rows))
	for i, row := range rows {
		foldJoins(row, plan.Base.Joins)
		entities[i] = row
	}

	total, err := e.countTotal(ctx, filters)
	if err != nil {
		return nil, err
	}

	var merges []prefetchResult
	if len(plan.Prefetches) > 0 && len(entities) > 0 {
		owners := make([]interface{}, len(entities))
		for i, ent := range entities {
			owners[i] = ent[pkCol]
		}
		for _, pf := range plan.Prefetches {
			byOwner, err := e.relations.FetchRelated(ctx, pf.Relation, owners, pf.IDsOnly)
			if err != nil {
				return nil, err
			}
			merges = append(merges, prefetchResult{attrName: pf.AttrName, byOwner: byOwner})
		}
	}
	return newCursor(entities, merges, pkCol, total), nil
}

func (e *executor) create(ctx context.Context, body common.RequestBody) (Entity, error) {
	data, syncs := DecodeBody(e.res, body, true)
	if len(data) == 0 {
		return nil, &common.UnprocessableError{Reason: "request body assigns no writable fields"}
	}
	if err := e.validateData(data); err != nil {
		return nil, err
	}

	ins := e.db.NewInsert().Table(e.res.Table)
	for col, value := range data {
		ins = ins.Value(col, value)
	}
	var pk interface{}
	if err := ins.Returning(e.res.PK().Column).ExecReturning(ctx, &pk); err != nil {
		return nil, common.TranslateDBError(err)
	}
	if pk == nil {
		return nil, &common.InternalError{Op: "create", Reason: "insert returned no primary key"}
	}

	for _, sync := range syncs {
		if len(sync.IDs) == 0 {
			// Nothing to insert for a fresh row; skipped rather than
			// issuing a no-op delete.
			continue
		}
		if err := e.relations.SyncRelated(ctx, sync.Relation, pk, sync.IDs); err != nil {
			return nil, err
		}
	}

	e.invalidateCounts(ctx)
	logger.Debug("created %s %v", e.res.Name, pk)
	return e.retrieve(ctx, pk, e.res.FullFields())
}

func (e *executor) update(ctx context.Context, pk interface{}, body common.RequestBody) (Entity, error) {
	data, syncs := DecodeBody(e.res, body, false)
	if err := e.validateData(data); err != nil {
		return nil, err
	}

	owner, err := e.resolvePK(ctx, pk)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		upd := e.db.NewUpdate().Table(e.res.Table).SetMap(data).
			Where(fmt.Sprintf("%s = ?", quoteIdent(e.res.PK().Column)), owner)
		res, err := upd.Exec(ctx)
		if err != nil {
			return nil, common.TranslateDBError(err)
		}
		if res.RowsAffected() == 0 {
			return nil, &common.InternalError{Op: "update", Reason: "resolved row was not updated"}
		}
	}

	// Unlike create, every decoded relation assignment is applied: an
	// empty id set clears the relation.
	for _, sync := range syncs {
		if err := e.relations.SyncRelated(ctx, sync.Relation, owner, sync.IDs); err != nil {
			return nil, err
		}
	}

	// A payload that decodes to nothing still resolves and re-fetches:
	// the caller gets the current full representation back.
	if len(data) > 0 || len(syncs) > 0 {
		e.invalidateCounts(ctx)
		logger.Debug("updated %s %v", e.res.Name, owner)
	}
	return e.retrieve(ctx, owner, e.res.FullFields())
}

func (e *executor) destroy(ctx context.Context, pk interface{}) error {
	owner, err := e.resolvePK(ctx, pk)
	if err != nil {
		return err
	}

	del := e.db.NewDelete().Table(e.res.Table).
		Where(fmt.Sprintf("%s = ?", quoteIdent(e.res.PK().Column)), owner)
	res, err := del.Exec(ctx)
	if err != nil {
		return common.TranslateDBError(err)
	}
	if res.RowsAffected() == 0 {
		return &common.InternalError{Op: "destroy", Reason: "resolved row was not deleted"}
	}

	e.invalidateCounts(ctx)
	logger.Debug("deleted %s %v", e.res.Name, owner)
	return nil
}

// resolvePK maps a lookup value onto the row's actual primary key,
// routing through the secondary lookup field when the value's type says
// so. Relation syncs and writes always address the primary key.
func (e *executor) resolvePK(ctx context.Context, pk interface{}) (interface{}, error) {
	p := e.lookupPredicate(pk)
	table := quoteIdent(e.res.Table)
	pkCol := e.res.PK().Column

	row := make(map[string]interface{})
	err := e.db.NewSelect().
		Table(e.res.Table).
		ColumnExpr(fmt.Sprintf("%s.%s AS %s", table, quoteIdent(pkCol), quoteIdent(pkCol))).
		Where(fmt.Sprintf("%s.%s = ?", table, quoteIdent(p.column)), p.value).
		Scan(ctx, &row)
	if err != nil {
		return nil, common.TranslateDBError(err)
	}
	owner, ok := row[pkCol]
	if !ok || owner == nil {
		return nil, &common.InternalError{Op: "lookup", Reason: "resolved row carries no primary key"}
	}
	return owner, nil
}

// validateData rejects writable string values longer than the schema
// allows before they reach the database.
func (e *executor) validateData(data map[string]interface{}) error {
	for name, f := range e.res.Fields {
		if f.Type != schema.TypeString || f.MaxLength <= 0 {
			continue
		}
		v, ok := data[f.Column]
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && len(s) > f.MaxLength {
			return &common.UnprocessableError{
				Reason: fmt.Sprintf("%s exceeds maximum length %d", name, f.MaxLength),
			}
		}
	}
	return nil
}

// countTotal returns the number of rows matching the filters, serving
// and refreshing the cached total when a cache provider is configured.
func (e *executor) countTotal(ctx context.Context, filters map[string]interface{}) (int, error) {
	key := cache.ListTotalKey(e.res.Table, filters)
	if e.cache != nil {
		if raw, ok := e.cache.Get(ctx, key); ok {
			var cached cache.CachedTotal
			if json.Unmarshal(raw, &cached) == nil {
				return cached.Total, nil
			}
		}
	}

	total, err := e.applyFilters(e.db.NewSelect().Table(e.res.Table), filters).Count(ctx)
	if err != nil {
		return 0, common.TranslateDBError(err)
	}

	if e.cache != nil {
		if raw, err := json.Marshal(cache.CachedTotal{Total: total}); err == nil {
			if err := e.cache.SetWithTags(ctx, key, raw, countCacheTTL, []string{cache.TableTag(e.res.Table)}); err != nil {
				logger.Warn("caching list total for %s: %v", e.res.Table, err)
			}
		}
	}
	return total, nil
}

// invalidateCounts drops every cached list total for the resource's
// table after a mutation.
func (e *executor) invalidateCounts(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.DeleteByTag(ctx, cache.TableTag(e.res.Table)); err != nil {
		logger.Warn("invalidating list totals for %s: %v", e.res.Table, err)
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
