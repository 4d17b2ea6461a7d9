package memory

import (
	"context"
	"sync"

	"github.com/mushuanli/vfs/backend"
	"github.com/tidwall/btree"
)

type memoryTransaction struct {
	mu sync.Mutex

	backend  *MemoryBackend
	mode     backend.Mode
	declared map[string]*table

	// Copy-on-write snapshots taken at Begin, used to roll back on Abort.
	snapshots map[string]*tableSnapshot

	done bool
}

type tableSnapshot struct {
	docs *btree.Map[string, backend.Document]
	seq  int64
}

// Begin opens a transaction scoped to exactly the named collections.
// Read-write transactions hold the backend's writer lock until terminal,
// which serializes overlapping writers.
func (mb *MemoryBackend) Begin(ctx context.Context, collections []string, mode backend.Mode) (backend.Transaction, error) {
	declared := make(map[string]*table, len(collections))

	mb.mu.RLock()
	for _, name := range collections {
		t, exists := mb.tables[name]
		if !exists {
			mb.mu.RUnlock()
			return nil, backend.ErrUnknownCollection
		}
		declared[name] = t
	}
	mb.mu.RUnlock()

	tx := &memoryTransaction{
		backend:  mb,
		mode:     mode,
		declared: declared,
	}

	if mode == backend.ReadWrite {
		mb.writer.Lock()

		tx.snapshots = make(map[string]*tableSnapshot, len(declared))
		mb.mu.RLock()
		for name, t := range declared {
			tx.snapshots[name] = &tableSnapshot{
				docs: t.docs.Copy(),
				seq:  t.seq,
			}
		}
		mb.mu.RUnlock()
	}

	return tx, nil
}

func (tx *memoryTransaction) Collection(name string) (backend.Collection, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return nil, backend.ErrTxDone
	}

	t, exists := tx.declared[name]
	if !exists {
		return nil, backend.ErrUnknownCollection
	}

	return &memoryCollection{tx: tx, table: t}, nil
}

func (tx *memoryTransaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	if tx.mode == backend.ReadWrite {
		tx.snapshots = nil
		tx.backend.writer.Unlock()
	}

	return nil
}

func (tx *memoryTransaction) Abort(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.done {
		return backend.ErrTxDone
	}
	tx.done = true

	if tx.mode == backend.ReadWrite {
		tx.backend.mu.Lock()
		for name, snapshot := range tx.snapshots {
			t := tx.declared[name]
			t.docs = snapshot.docs
			t.seq = snapshot.seq
			t.rebuildIndexes()
		}
		tx.backend.mu.Unlock()

		tx.snapshots = nil
		tx.backend.writer.Unlock()
	}

	return nil
}

func (tx *memoryTransaction) Mode() backend.Mode {
	return tx.mode
}

// guard validates tx state before a collection operation.
func (tx *memoryTransaction) guard(write bool) error {
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
