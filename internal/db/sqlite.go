package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the database schema.
// The Postgres source reads the same tables.
//
//go:embed schema.sql
var schemaSQL string

// DB is the collisions store. All access goes through one connection and
// imports also hold writeMu.
type DB struct {
	conn    *sql.DB
	path    string
	writeMu sync.Mutex
}

// storePragmas apply to every connection the driver opens. PruneRuns relies
// on foreign keys to cascade a run's rows.
var storePragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"cache_size(-65536)", // KiB
}

// Connect opens (or creates) the collisions store at dbPath.
func Connect(dbPath string) (*DB, error) {
	params := make([]string, len(storePragmas))
	for i, p := range storePragmas {
		params[i] = "_pragma=" + p
	}
	conn, err := sql.Open("sqlite", dbPath+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open collisions store: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open collisions store %s: %w", dbPath, err)
	}

	log.Printf("Opened collisions store %s", dbPath)
	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// LockWrite acquires the write mutex. Must be paired with UnlockWrite.
func (db *DB) LockWrite() {
	db.writeMu.Lock()
}

// UnlockWrite releases the write mutex.
func (db *DB) UnlockWrite() {
	db.writeMu.Unlock()
}

// AddedColumns are collisions TEXT columns introduced after the first schema.
// Stores created before them are migrated in place.
var AddedColumns = []string{"vehicle_category", "factor_category"}

// EnsureSchema creates the import tables and adds columns missing from older
// stores.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.LockWrite()
	defer db.UnlockWrite()

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	have, err := db.columns(ctx, "collisions")
	if err != nil {
		return err
	}
	for _, col := range AddedColumns {
		if have[col] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE collisions ADD COLUMN %s TEXT NOT NULL DEFAULT ''", col)
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col, err)
		}
		log.Printf("Added collisions.%s to %s", col, db.path)
	}
	return nil
}

func (db *DB) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s columns: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to list %s columns: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// GetSchemaSQL returns the embedded schema, e.g. to prepare a Postgres database.
func GetSchemaSQL() string {
	return schemaSQL
}
