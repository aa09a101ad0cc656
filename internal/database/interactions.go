package database

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

// PersistInteraction records (source, target). Repeats are ignored.
func (dm *DBManager) PersistInteraction(ctx context.Context, ix apptype.Interaction) error {
	done := metrics.TimeOp("db_persist_interaction")
	success := false
	defer func() { done(success) }()
	if ix.Source == "" || ix.Target == "" {
		return fmt.Errorf("interaction requires source and target")
	}
	db, err := dm.getDB()
	if err != nil {
		return err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, "INSERT OR IGNORE INTO interactions (source, target) VALUES (?, ?)")
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, ix.Source, ix.Target); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	success = true
	return nil
}

// LoadInteractions returns every stored pair ordered by source then target.
func (dm *DBManager) LoadInteractions(ctx context.Context) ([]apptype.Interaction, error) {
	done := metrics.TimeOp("db_load_interactions")
	success := false
	defer func() { done(success) }()
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, "SELECT source, target FROM interactions ORDER BY source, target")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []apptype.Interaction
	for rows.Next() {
		var ix apptype.Interaction
		if err := rows.Scan(&ix.Source, &ix.Target); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		out = append(out, ix)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}
