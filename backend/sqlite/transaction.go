package sqlite

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mushuanli/vfs/backend"
)

type sqliteTransaction struct {
	mu sync.Mutex

	backend  *SQLiteBackend
	tx       *sql.Tx
	mode     backend.Mode
	declared map[string]backend.Schema

	done bool
}

// Begin opens a transaction scoped to exactly the named collections.
func (sb *SQLiteBackend) Begin(ctx context.Context, collections []string, mode backend.Mode) (backend.Transaction, error) {
	declared := make(map[string]backend.Schema, len(collections))
	for _, name := range collections {
		schema, exists := sb.schemas[name]
		if !exists {
			return nil, backend.ErrUnknownCollection
		}
		declared[name] = schema
	}

	tx, err := sb.db.BeginTx(ctx, &sql.TxOptions{
		ReadOnly: false, // the sqlite driver rejects read-only; enforced in guard
	})
	if err != nil {
		return nil, err
	}

	return &sqliteTransaction{
		backend:  sb,
		tx:       tx,
		mode:     mode,
		declared: declared,
	}, nil
}

func (tx *sqliteTransaction) Collection(name string) (backend.Collection, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return nil, backend.ErrTxDone
	}

	schema, exists := tx.declared[name]
	if !exists {
		return nil, backend.ErrUnknownCollection
	}

	return &sqliteCollection{tx: tx, schema: schema}, nil
}

func (tx *sqliteTransaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	return tx.tx.Commit()
}

func (tx *sqliteTransaction) Abort(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	return tx.tx.Rollback()
}

func (tx *sqliteTransaction) Mode() backend.Mode {
	return tx.mode
}

func (tx *sqliteTransaction) guard(write bool) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}

	if write && tx.mode != backend.ReadWrite {
		return backend.ErrTxReadOnly
	}

	return nil
}

// nextSequence advances and returns the auto-increment counter for a
// collection, inside the current transaction.
func (tx *sqliteTransaction) nextSequence(ctx context.Context, collection string) (int64, error) {
	var seq int64
	err := tx.tx.QueryRowContext(ctx,
		"SELECT seq FROM vfs_sequences WHERE collection = ?", collection).Scan(&seq)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}

	seq++
	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO vfs_sequences (collection, seq) VALUES (?, ?)
		ON CONFLICT(collection) DO UPDATE SET seq = excluded.seq
	`, collection, seq)
	if err != nil {
		return 0, err
	}

	return seq, nil
}
