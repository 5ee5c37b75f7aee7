// Package database adapts bun to the common.Database interface. Queries
// are built from explicit table and column names; no bun model structs
// are involved, rows scan into maps.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/logger"
	"github.com/viewspec/viewspec/pkg/metrics"
)

// QueryDebugHook is a bun query hook that logs every SQL statement and
// feeds the query metrics.
type QueryDebugHook struct{}

func (h *QueryDebugHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryDebugHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	table := ""
	if event.IQuery != nil {
		table = event.IQuery.GetTableName()
	}
	metrics.GetProvider().RecordDBQuery(event.Operation(), table, duration, event.Err)

	if event.Err != nil && event.Err != sql.ErrNoRows {
		logger.Error("SQL query failed [%s]: %s. Error: %v", duration, event.Query, event.Err)
	} else {
		logger.Debug("SQL query [%s]: %s", duration, event.Query)
	}
}

// BunAdapter implements common.Database on top of *bun.DB.
type BunAdapter struct {
	db     *bun.DB
	driver string
}

// NewBunAdapter wraps a bun handle. driver is the canonical driver
// name, "postgres" or "sqlite"; it decides how inserts return keys.
func NewBunAdapter(db *bun.DB, driver string) *BunAdapter {
	return &BunAdapter{db: db, driver: driver}
}

// EnableQueryDebug logs all SQL queries through the debug hook.
func (b *BunAdapter) EnableQueryDebug() {
	b.db.AddQueryHook(&QueryDebugHook{})
	logger.Info("Bun query debug mode enabled - all SQL queries will be logged")
}

func (b *BunAdapter) NewSelect() common.SelectQuery {
	return &BunSelectQuery{query: b.db.NewSelect(), db: b.db}
}

func (b *BunAdapter) NewInsert() common.InsertQuery {
	return &BunInsertQuery{query: b.db.NewInsert(), driver: b.driver}
}

func (b *BunAdapter) NewUpdate() common.UpdateQuery {
	return &BunUpdateQuery{query: b.db.NewUpdate()}
}

func (b *BunAdapter) NewDelete() common.DeleteQuery {
	return &BunDeleteQuery{query: b.db.NewDelete()}
}

func (b *BunAdapter) Exec(ctx context.Context, query string, args ...interface{}) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunAdapter.Exec", r)
		}
	}()
	result, err := b.db.ExecContext(ctx, query, args...)
	return &BunResult{result: result}, err
}

func (b *BunAdapter) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunAdapter.Query", r)
		}
	}()
	return b.db.NewRaw(query, args...).Scan(ctx, dest)
}

func (b *BunAdapter) RunInTransaction(ctx context.Context, fn func(common.Database) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunAdapter.RunInTransaction", r)
		}
	}()
	return b.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(&BunTxAdapter{tx: tx, driver: b.driver})
	})
}

func (b *BunAdapter) GetUnderlyingDB() interface{} {
	return b.db
}

func (b *BunAdapter) DriverName() string {
	return b.driver
}

// BunSelectQuery implements SelectQuery for bun.
type BunSelectQuery struct {
	query *bun.SelectQuery
	db    bun.IDB // for the wrapped count query
}

func (b *BunSelectQuery) Table(table string) common.SelectQuery {
	b.query = b.query.Table(table)
	return b
}

func (b *BunSelectQuery) Column(columns ...string) common.SelectQuery {
	b.query = b.query.Column(columns...)
	return b
}

func (b *BunSelectQuery) ColumnExpr(query string, args ...interface{}) common.SelectQuery {
	b.query = b.query.ColumnExpr(query, args...)
	return b
}

func (b *BunSelectQuery) Where(query string, args ...interface{}) common.SelectQuery {
	b.query = b.query.Where(query, args...)
	return b
}

// Join appends a join clause verbatim, join keyword included.
func (b *BunSelectQuery) Join(query string, args ...interface{}) common.SelectQuery {
	b.query = b.query.Join(query, args...)
	return b
}

// LeftJoin appends a LEFT JOIN; query carries everything after the join
// keyword ("table AS alias ON condition").
func (b *BunSelectQuery) LeftJoin(query string, args ...interface{}) common.SelectQuery {
	b.query = b.query.Join("LEFT JOIN "+query, args...)
	return b
}

func (b *BunSelectQuery) Order(order string) common.SelectQuery {
	b.query = b.query.OrderExpr(order)
	return b
}

func (b *BunSelectQuery) Limit(n int) common.SelectQuery {
	b.query = b.query.Limit(n)
	return b
}

func (b *BunSelectQuery) Offset(n int) common.SelectQuery {
	b.query = b.query.Offset(n)
	return b
}

func (b *BunSelectQuery) Scan(ctx context.Context, dest interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunSelectQuery.Scan", r)
		}
	}()
	if dest == nil {
		return fmt.Errorf("destination cannot be nil")
	}
	if err := b.query.Scan(ctx, dest); err != nil {
		if err != sql.ErrNoRows {
			logger.Error("BunSelectQuery.Scan failed. SQL: %s. Error: %v", b.query.String(), err)
		}
		return err
	}
	return nil
}

// Count wraps the query as a subquery; the builder carries no model, so
// bun's native model count does not apply.
func (b *BunSelectQuery) Count(ctx context.Context) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunSelectQuery.Count", r)
			count = 0
		}
	}()
	countQuery := b.db.NewSelect().
		TableExpr("(?) AS subquery", b.query).
		ColumnExpr("COUNT(*)")
	if err := countQuery.Scan(ctx, &count); err != nil {
		logger.Error("BunSelectQuery.Count failed. SQL: %s. Error: %v", countQuery.String(), err)
		return 0, err
	}
	return count, nil
}

func (b *BunSelectQuery) Exists(ctx context.Context) (exists bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunSelectQuery.Exists", r)
			exists = false
		}
	}()
	exists, err = b.query.Exists(ctx)
	if err != nil {
		logger.Error("BunSelectQuery.Exists failed. SQL: %s. Error: %v", b.query.String(), err)
	}
	return exists, err
}

// BunInsertQuery implements InsertQuery for bun. Values collect into a
// map that becomes the insert model on execution.
type BunInsertQuery struct {
	query     *bun.InsertQuery
	values    map[string]interface{}
	returning string
	driver    string
}

func (b *BunInsertQuery) Table(table string) common.InsertQuery {
	b.query = b.query.Table(table)
	return b
}

func (b *BunInsertQuery) Value(column string, value interface{}) common.InsertQuery {
	if b.values == nil {
		b.values = make(map[string]interface{})
	}
	b.values[column] = value
	return b
}

func (b *BunInsertQuery) Returning(columns ...string) common.InsertQuery {
	if len(columns) > 0 {
		b.returning = columns[0]
	}
	return b
}

func (b *BunInsertQuery) bind() {
	if len(b.values) > 0 {
		b.query = b.query.Model(&b.values)
		b.values = nil
	}
}

func (b *BunInsertQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunInsertQuery.Exec", r)
		}
	}()
	b.bind()
	result, err := b.query.Exec(ctx)
	if err != nil {
		logger.Error("BunInsertQuery.Exec failed. SQL: %s. Error: %v", b.query.String(), err)
	}
	return &BunResult{result: result}, err
}

// ExecReturning executes the insert and delivers the RETURNING column
// into dest. On drivers without reliable RETURNING support it falls
// back to LastInsertId.
func (b *BunInsertQuery) ExecReturning(ctx context.Context, dest interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunInsertQuery.ExecReturning", r)
		}
	}()
	b.bind()

	if b.driver == "postgres" && b.returning != "" {
		b.query = b.query.Returning("?", bun.Ident(b.returning))
		if _, err := b.query.Exec(ctx, dest); err != nil {
			logger.Error("BunInsertQuery.ExecReturning failed. SQL: %s. Error: %v", b.query.String(), err)
			return err
		}
		return nil
	}

	result, err := b.query.Exec(ctx)
	if err != nil {
		logger.Error("BunInsertQuery.ExecReturning failed. SQL: %s. Error: %v", b.query.String(), err)
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	switch d := dest.(type) {
	case *interface{}:
		*d = id
	case *int64:
		*d = id
	default:
		return fmt.Errorf("unsupported ExecReturning destination %T", dest)
	}
	return nil
}

// BunUpdateQuery implements UpdateQuery for bun.
type BunUpdateQuery struct {
	query *bun.UpdateQuery
}

func (b *BunUpdateQuery) Table(table string) common.UpdateQuery {
	b.query = b.query.Table(table)
	return b
}

func (b *BunUpdateQuery) Set(column string, value interface{}) common.UpdateQuery {
	b.query = b.query.Set("? = ?", bun.Ident(column), value)
	return b
}

// SetMap applies assignments in sorted column order so generated SQL is
// deterministic.
func (b *BunUpdateQuery) SetMap(values map[string]interface{}) common.UpdateQuery {
	columns := make([]string, 0, len(values))
	for column := range values {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		b.query = b.query.Set("? = ?", bun.Ident(column), values[column])
	}
	return b
}

func (b *BunUpdateQuery) Where(query string, args ...interface{}) common.UpdateQuery {
	b.query = b.query.Where(query, args...)
	return b
}

func (b *BunUpdateQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunUpdateQuery.Exec", r)
		}
	}()
	result, err := b.query.Exec(ctx)
	if err != nil {
		logger.Error("BunUpdateQuery.Exec failed. SQL: %s. Error: %v", b.query.String(), err)
	}
	return &BunResult{result: result}, err
}

// BunDeleteQuery implements DeleteQuery for bun.
type BunDeleteQuery struct {
	query *bun.DeleteQuery
}

func (b *BunDeleteQuery) Table(table string) common.DeleteQuery {
	b.query = b.query.Table(table)
	return b
}

func (b *BunDeleteQuery) Where(query string, args ...interface{}) common.DeleteQuery {
	b.query = b.query.Where(query, args...)
	return b
}

func (b *BunDeleteQuery) Exec(ctx context.Context) (res common.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = logger.HandlePanic("BunDeleteQuery.Exec", r)
		}
	}()
	result, err := b.query.Exec(ctx)
	if err != nil {
		logger.Error("BunDeleteQuery.Exec failed. SQL: %s. Error: %v", b.query.String(), err)
	}
	return &BunResult{result: result}, err
}

// BunResult implements Result for bun.
type BunResult struct {
	result sql.Result
}

func (b *BunResult) RowsAffected() int64 {
	if b.result == nil {
		return 0
	}
	rows, _ := b.result.RowsAffected()
	return rows
}

func (b *BunResult) LastInsertId() (int64, error) {
	if b.result == nil {
		return 0, nil
	}
	return b.result.LastInsertId()
}

// BunTxAdapter wraps a bun transaction to implement the Database
// interface within RunInTransaction.
type BunTxAdapter struct {
	tx     bun.Tx
	driver string
}

func (b *BunTxAdapter) NewSelect() common.SelectQuery {
	return &BunSelectQuery{query: b.tx.NewSelect(), db: b.tx}
}

func (b *BunTxAdapter) NewInsert() common.InsertQuery {
	return &BunInsertQuery{query: b.tx.NewInsert(), driver: b.driver}
}

func (b *BunTxAdapter) NewUpdate() common.UpdateQuery {
	return &BunUpdateQuery{query: b.tx.NewUpdate()}
}

func (b *BunTxAdapter) NewDelete() common.DeleteQuery {
	return &BunDeleteQuery{query: b.tx.NewDelete()}
}

func (b *BunTxAdapter) Exec(ctx context.Context, query string, args ...interface{}) (common.Result, error) {
	result, err := b.tx.ExecContext(ctx, query, args...)
	return &BunResult{result: result}, err
}

func (b *BunTxAdapter) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return b.tx.NewRaw(query, args...).Scan(ctx, dest)
}

// RunInTransaction reuses the open transaction; nesting does not open a
// savepoint.
func (b *BunTxAdapter) RunInTransaction(ctx context.Context, fn func(common.Database) error) error {
	return fn(b)
}

func (b *BunTxAdapter) GetUnderlyingDB() interface{} {
	return b.tx
}

func (b *BunTxAdapter) DriverName() string {
	return b.driver
}
