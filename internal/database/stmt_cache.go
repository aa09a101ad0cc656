package database

import (
	"context"
	"database/sql"
	"fmt"
)

// getPreparedStmt returns or prepares and caches a statement
func (dm *DBManager) getPreparedStmt(ctx context.Context, db *sql.DB, sqlText string) (*sql.Stmt, error) {
	// fast path read
	dm.stmtMu.RLock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		dm.stmtMu.RUnlock()
		return stmt, nil
	}
	dm.stmtMu.RUnlock()

	dm.stmtMu.Lock()
	defer dm.stmtMu.Unlock()
	if stmt, ok := dm.stmtCache[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	dm.stmtCache[sqlText] = stmt
	return stmt, nil
}
