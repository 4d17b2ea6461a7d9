package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mushuanli/vfs/backend"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteBackend fronts the adapter contract with a real transactional,
// index-capable engine.
//
// Each collection maps onto two tables:
//   - "vfs_<name>"     : key TEXT PRIMARY KEY, doc TEXT (JSON document)
//   - "vfs_<name>_idx" : (idx, value, key) rows, one per index entry
//
// Secondary and multi-entry indexes are materialized as index rows; a
// shared vfs_sequences table drives auto-increment collections. All writes
// go through real SQL transactions, so commit/abort semantics come straight
// from the engine.
type SQLiteBackend struct {
	db      *sql.DB
	schemas map[string]backend.Schema
}

// NewSQLiteBackend creates a new SQLite-backed storage adapter.
// The dbPath can be ":memory:" for an in-memory database or a file path.
func NewSQLiteBackend(dbPath string, schemas ...backend.Schema) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// The driver serializes writers; a single connection avoids
	// table-lock errors between pooled connections.
	db.SetMaxOpenConns(1)

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	byName := make(map[string]backend.Schema, len(schemas))
	for _, schema := range schemas {
		byName[schema.Name] = schema
	}

	sb := &SQLiteBackend{
		db:      db,
		schemas: byName,
	}

	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

func docTable(collection string) string {
	return fmt.Sprintf("%q", "vfs_"+collection)
}

func idxTable(collection string) string {
	return fmt.Sprintf("%q", "vfs_"+collection+"_idx")
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vfs_sequences (
			collection TEXT PRIMARY KEY,
			seq INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for name := range sb.schemas {
		statements = append(statements,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				key TEXT PRIMARY KEY,
				doc TEXT NOT NULL
			)`, docTable(name)),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				idx TEXT NOT NULL,
				value TEXT NOT NULL,
				key TEXT NOT NULL,
				PRIMARY KEY (idx, value, key)
			)`, idxTable(name)),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %s (idx, value)`,
				"vfs_"+name+"_idx_lookup", idxTable(name)),
		)
	}

	for _, stmt := range statements {
		if _, err := sb.db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	return sb.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	return sb.db.Close()
}

// Destroy drops every collection and its data.
func (sb *SQLiteBackend) Destroy(ctx context.Context) error {
	for name := range sb.schemas {
		if _, err := sb.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+docTable(name)); err != nil {
			return err
		}
		if _, err := sb.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+idxTable(name)); err != nil {
			return err
		}
	}

	_, err := sb.db.ExecContext(ctx, "DELETE FROM vfs_sequences")
	return err
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityTransactions,
			backend.CapabilityIndexes,
			backend.CapabilityDurable,
		},
	}
}
