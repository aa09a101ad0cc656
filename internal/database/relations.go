package database

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

// CreateRelations stores undirected links. Duplicates, in either direction,
// are ignored.
func (dm *DBManager) CreateRelations(ctx context.Context, relations []apptype.Relation) error {
	done := metrics.TimeOp("db_create_relations")
	success := false
	defer func() { done(success) }()
	if len(relations) == 0 {
		success = true
		return nil
	}
	db, err := dm.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO relations (a, b) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, relation := range relations {
		if relation.A == "" || relation.B == "" {
			return fmt.Errorf("relation fields cannot be empty")
		}
		if relation.A == relation.B {
			continue
		}
		a, b := orderedPair(relation.A, relation.B)
		if _, err := stmt.ExecContext(ctx, a, b); err != nil {
			return fmt.Errorf("failed to insert relation (%s -- %s): %w", a, b, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// LoadRelations returns every stored link ordered by (a, b).
func (dm *DBManager) LoadRelations(ctx context.Context) ([]apptype.Relation, error) {
	done := metrics.TimeOp("db_load_relations")
	success := false
	defer func() { done(success) }()
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, "SELECT a, b FROM relations ORDER BY a, b")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query relations: %w", err)
	}
	defer rows.Close()

	var out []apptype.Relation
	for rows.Next() {
		var r apptype.Relation
		if err := rows.Scan(&r.A, &r.B); err != nil {
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

func orderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
