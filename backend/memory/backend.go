package memory

import (
	"context"
	"sync"

	"github.com/mushuanli/vfs/backend"
	"github.com/tidwall/btree"
)

// MemoryBackend is the schema-driven in-memory storage engine.
//
// Every collection keeps its documents in an ordered B-tree keyed by the
// primary key, plus one B-tree per secondary index mapping index values to
// key sets. Transaction isolation works through pre-transaction snapshots:
// read-write transactions copy the declared collections at Begin and
// restore them on Abort.
type MemoryBackend struct {
	mu sync.RWMutex

	// writer serializes read-write transactions.
	writer sync.Mutex

	tables map[string]*table
}

type table struct {
	schema backend.Schema
	docs   *btree.Map[string, backend.Document]

	// index name -> index value -> set of primary keys
	indexes map[string]*btree.Map[string, map[string]struct{}]

	// seq drives synthetic auto-increment keys.
	seq int64
}

func newTable(schema backend.Schema) *table {
	t := &table{
		schema:  schema,
		docs:    btree.NewMap[string, backend.Document](0),
		indexes: make(map[string]*btree.Map[string, map[string]struct{}], len(schema.Indexes)),
	}

	for _, idx := range schema.Indexes {
		t.indexes[idx.Name] = btree.NewMap[string, map[string]struct{}](0)
	}

	return t
}

func NewMemoryBackend(schemas ...backend.Schema) *MemoryBackend {
	tables := make(map[string]*table, len(schemas))
	for _, schema := range schemas {
		tables[schema.Name] = newTable(schema)
	}

	return &MemoryBackend{
		tables: tables,
	}
}

// Name returns the identifier name defined for this backend
func (*MemoryBackend) Name() string {
	return "memory"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (mb *MemoryBackend) Open(ctx context.Context) error {
	// No initialization needed - backend is ready to use
	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (mb *MemoryBackend) Close(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for _, t := range mb.tables {
		t.docs.Clear()
		for _, idx := range t.indexes {
			idx.Clear()
		}
	}

	return nil
}

// Destroy drops every collection and its data.
func (mb *MemoryBackend) Destroy(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for name, t := range mb.tables {
		mb.tables[name] = newTable(t.schema)
	}

	return nil
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (mb *MemoryBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityTransactions,
			backend.CapabilityIndexes,
		},
	}
}

// rebuildIndexes recomputes every secondary index of t from its documents.
// Called after a snapshot restore.
func (t *table) rebuildIndexes() {
	for _, idx := range t.indexes {
		idx.Clear()
	}

	t.docs.Scan(func(key string, doc backend.Document) bool {
		t.indexDocument(key, doc)
		return true
	})
}

func (t *table) indexDocument(key string, doc backend.Document) {
	for _, idx := range t.schema.Indexes {
		tree := t.indexes[idx.Name]
		for _, value := range backend.IndexValues(idx, doc) {
			keys, exists := tree.Get(value)
			if !exists {
				keys = make(map[string]struct{})
				tree.Set(value, keys)
			}
			keys[key] = struct{}{}
		}
	}
}

func (t *table) unindexDocument(key string, doc backend.Document) {
	for _, idx := range t.schema.Indexes {
		tree := t.indexes[idx.Name]
		for _, value := range backend.IndexValues(idx, doc) {
			if keys, exists := tree.Get(value); exists {
				delete(keys, key)
				if len(keys) == 0 {
					tree.Delete(value)
				}
			}
		}
	}
}
