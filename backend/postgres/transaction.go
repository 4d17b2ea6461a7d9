package postgres

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/mushuanli/vfs/backend"
)

type postgresTransaction struct {
	mu sync.Mutex

	backend  *PostgresBackend
	tx       pgx.Tx
	mode     backend.Mode
	declared map[string]backend.Schema

	done bool
}

// Begin opens a transaction scoped to exactly the named collections.
func (pb *PostgresBackend) Begin(ctx context.Context, collections []string, mode backend.Mode) (backend.Transaction, error) {
	declared := make(map[string]backend.Schema, len(collections))
	for _, name := range collections {
		schema, exists := pb.schemas[name]
		if !exists {
			return nil, backend.ErrUnknownCollection
		}
		declared[name] = schema
	}

	access := pgx.ReadWrite
	if mode == backend.ReadOnly {
		access = pgx.ReadOnly
	}

	tx, err := pb.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: access})
	if err != nil {
		return nil, err
	}

	return &postgresTransaction{
		backend:  pb,
		tx:       tx,
		mode:     mode,
		declared: declared,
	}, nil
}

func (tx *postgresTransaction) Collection(name string) (backend.Collection, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return nil, backend.ErrTxDone
	}

	schema, exists := tx.declared[name]
	if !exists {
		return nil, backend.ErrUnknownCollection
	}

	return &postgresCollection{tx: tx, schema: schema}, nil
}

func (tx *postgresTransaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	return tx.tx.Commit(ctx)
}

func (tx *postgresTransaction) Abort(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	return tx.tx.Rollback(ctx)
}

func (tx *postgresTransaction) Mode() backend.Mode {
	return tx.mode
}

func (tx *postgresTransaction) guard(write bool) error {
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
func (tx *postgresTransaction) nextSequence(ctx context.Context, collection string) (int64, error) {
	var seq int64
	err := tx.tx.QueryRow(ctx, `
		INSERT INTO vfs_sequences (collection, seq) VALUES ($1, 1)
		ON CONFLICT (collection) DO UPDATE SET seq = vfs_sequences.seq + 1
		RETURNING seq
	`, collection).Scan(&seq)
	if err != nil {
		return 0, err
	}

	return seq, nil
}
