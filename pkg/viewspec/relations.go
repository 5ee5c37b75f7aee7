package viewspec

import (
	"context"
	"fmt"
	"strings"

	"github.com/viewspec/viewspec/pkg/common"
	"github.com/viewspec/viewspec/pkg/schema"
)

// RelationStore loads and rewrites many-to-many memberships. The
// db-backed implementation below is the default; tests substitute
// in-memory stores.
type RelationStore interface {
	// FetchRelated loads the relation's collections for a batch of
	// owning primary keys in one query, keyed by owner. idsOnly returns
	// bare related identifiers, otherwise full related entities.
	FetchRelated(ctx context.Context, rel *schema.Relation, owners []interface{}, idsOnly bool) (map[interface{}][]interface{}, error)

	// SyncRelated replaces the relation's membership for one owning row
	// with exactly ids. An empty set clears the relation.
	SyncRelated(ctx context.Context, rel *schema.Relation, owner interface{}, ids []interface{}) error
}

type dbRelationStore struct {
	db common.Database
}

// NewRelationStore returns the join-table-backed RelationStore.
func NewRelationStore(db common.Database) RelationStore {
	return &dbRelationStore{db: db}
}

func (s *dbRelationStore) FetchRelated(ctx context.Context, rel *schema.Relation, owners []interface{}, idsOnly bool) (map[interface{}][]interface{}, error) {
	out := make(map[interface{}][]interface{}, len(owners))
	if len(owners) == 0 {
		return out, nil
	}

	jt := quoteIdent(rel.JoinTable)
	src := quoteIdent(rel.SourceColumn)
	tgt := quoteIdent(rel.TargetColumn)

	q := s.db.NewSelect().
		Table(rel.JoinTable).
		ColumnExpr(fmt.Sprintf("%s.%s AS %s", jt, src, quoteIdent(ownerKeyAlias)))

	if idsOnly {
		q = q.ColumnExpr(fmt.Sprintf("%s.%s AS %s", jt, tgt, quoteIdent(targetKeyAlias))).
			Order(fmt.Sprintf("%s.%s, %s.%s", jt, src, jt, tgt))
	} else {
		ref := quoteIdent(rel.Ref.Table)
		refPK := quoteIdent(rel.Ref.PK().Column)
		for _, col := range rel.Ref.ColumnNames() {
			q = q.ColumnExpr(fmt.Sprintf("%s.%s AS %s", ref, quoteIdent(col), quoteIdent(col)))
		}
		q = q.Join(fmt.Sprintf("JOIN %s ON %s.%s = %s.%s", ref, ref, refPK, jt, tgt)).
			Order(fmt.Sprintf("%s.%s, %s.%s", jt, src, ref, refPK))
	}

	q = q.Where(fmt.Sprintf("%s.%s IN (%s)", jt, src, placeholders(len(owners))), owners...)

	var rows []map[string]interface{}
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, common.TranslateDBError(err)
	}

	for _, row := range rows {
		owner := normalizeKey(row[ownerKeyAlias])
		delete(row, ownerKeyAlias)
		if idsOnly {
			out[owner] = append(out[owner], row[targetKeyAlias])
		} else {
			out[owner] = append(out[owner], map[string]interface{}(row))
		}
	}
	return out, nil
}

func (s *dbRelationStore) SyncRelated(ctx context.Context, rel *schema.Relation, owner interface{}, ids []interface{}) error {
	err := s.db.RunInTransaction(ctx, func(tx common.Database) error {
		_, err := tx.NewDelete().
			Table(rel.JoinTable).
			Where(fmt.Sprintf("%s = ?", quoteIdent(rel.SourceColumn)), owner).
			Exec(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			_, err := tx.NewInsert().
				Table(rel.JoinTable).
				Value(rel.SourceColumn, owner).
				Value(rel.TargetColumn, id).
				Exec(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return common.TranslateDBError(err)
}

const (
	ownerKeyAlias  = "__owner"
	targetKeyAlias = "__target"
)

// quoteIdent double-quotes an identifier, valid on both postgres and
// sqlite.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
