// Package database persists entities, relations, feedback and interactions in
// libSQL, and loads them back as a snapshot to warm a fresh engine.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

// DBManager handles all database operations
type DBManager struct {
	config *Config

	mu sync.RWMutex
	db *sql.DB

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt
}

// NewDBManager opens the database and applies the schema.
func NewDBManager(config *Config) (*DBManager, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	manager := &DBManager{
		config:    config,
		stmtCache: make(map[string]*sql.Stmt),
	}
	if _, err := manager.getDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return manager, nil
}

// getDB returns the shared handle, opening it on first use.
func (dm *DBManager) getDB() (*sql.DB, error) {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()
	if db != nil {
		return db, nil
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db != nil {
		return dm.db, nil
	}

	newDb, err := sql.Open("libsql", dm.connURL())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	if err := dm.initialize(newDb); err != nil {
		newDb.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if dm.config.MaxOpenConns > 0 {
		newDb.SetMaxOpenConns(dm.config.MaxOpenConns)
	}
	if dm.config.MaxIdleConns > 0 {
		newDb.SetMaxIdleConns(dm.config.MaxIdleConns)
	}
	if dm.config.ConnMaxIdleSec > 0 {
		newDb.SetConnMaxIdleTime(time.Duration(dm.config.ConnMaxIdleSec) * time.Second)
	}
	if dm.config.ConnMaxLifeSec > 0 {
		newDb.SetConnMaxLifetime(time.Duration(dm.config.ConnMaxLifeSec) * time.Second)
	}

	dm.db = newDb
	return newDb, nil
}

// connURL appends the auth token to remote URLs. Local file URLs are used as-is.
func (dm *DBManager) connURL() string {
	dbURL := dm.config.URL
	if strings.HasPrefix(dbURL, "file:") || dm.config.AuthToken == "" {
		return dbURL
	}
	if u, err := url.Parse(dbURL); err == nil {
		q := u.Query()
		q.Set("authToken", dm.config.AuthToken)
		u.RawQuery = q.Encode()
		return u.String()
	}
	if strings.Contains(dbURL, "?") {
		return dbURL + "&authToken=" + url.QueryEscape(dm.config.AuthToken)
	}
	return dbURL + "?authToken=" + url.QueryEscape(dm.config.AuthToken)
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range schema() {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// Close closes prepared statements and the database handle.
func (dm *DBManager) Close() error {
	var errs []error
	dm.stmtMu.Lock()
	for _, stmt := range dm.stmtCache {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	dm.stmtCache = make(map[string]*sql.Stmt)
	dm.stmtMu.Unlock()

	dm.mu.Lock()
	if dm.db != nil {
		if err := dm.db.Close(); err != nil {
			errs = append(errs, err)
		}
		dm.db = nil
	}
	dm.mu.Unlock()
	return errors.Join(errs...)
}

// Ping checks the connection.
func (dm *DBManager) Ping(ctx context.Context) error {
	db, err := dm.getDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}
