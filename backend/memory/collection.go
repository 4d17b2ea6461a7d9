package memory

import (
	"context"
	"maps"
	"slices"
	"strconv"

	"github.com/mushuanli/vfs/backend"
)

type memoryCollection struct {
	tx    *memoryTransaction
	table *table
}

func (mc *memoryCollection) Get(ctx context.Context, key string) (backend.Document, error) {
	if err := mc.tx.guard(false); err != nil {
		return nil, err
	}

	mc.tx.backend.mu.RLock()
	defer mc.tx.backend.mu.RUnlock()

	doc, exists := mc.table.docs.Get(key)
	if !exists {
		return nil, backend.ErrNotExist
	}

	return maps.Clone(doc), nil
}

func (mc *memoryCollection) GetAll(ctx context.Context) ([]backend.Document, error) {
	if err := mc.tx.guard(false); err != nil {
		return nil, err
	}

	mc.tx.backend.mu.RLock()
	defer mc.tx.backend.mu.RUnlock()

	docs := make([]backend.Document, 0, mc.table.docs.Len())
	mc.table.docs.Scan(func(_ string, doc backend.Document) bool {
		docs = append(docs, maps.Clone(doc))
		return true
	})

	return docs, nil
}

func (mc *memoryCollection) Put(ctx context.Context, doc backend.Document) (string, error) {
	if err := mc.tx.guard(true); err != nil {
		return "", err
	}

	mc.tx.backend.mu.Lock()
	defer mc.tx.backend.mu.Unlock()

	return mc.put(doc)
}

// put stores a single document. Caller holds the backend lock.
func (mc *memoryCollection) put(doc backend.Document) (string, error) {
	t := mc.table
	doc = maps.Clone(doc)

	key := backend.String(doc, t.schema.PrimaryKey)
	if key == "" {
		if !t.schema.AutoIncrement {
			return "", backend.ErrMissingKey
		}

		t.seq++
		key = strconv.FormatInt(t.seq, 10)
		doc[t.schema.PrimaryKey] = key
	}

	// Unique index enforcement before any mutation
	for _, idx := range t.schema.Indexes {
		if !idx.Unique {
			continue
		}

		tree := t.indexes[idx.Name]
		for _, value := range backend.IndexValues(idx, doc) {
			if keys, exists := tree.Get(value); exists {
				for existing := range keys {
					if existing != key {
						return "", backend.ErrUniqueViolation
					}
				}
			}
		}
	}

	if old, exists := t.docs.Get(key); exists {
		t.unindexDocument(key, old)
	}

	t.docs.Set(key, doc)
	t.indexDocument(key, doc)

	return key, nil
}

func (mc *memoryCollection) PutAll(ctx context.Context, docs []backend.Document) error {
	if err := mc.tx.guard(true); err != nil {
		return err
	}

	mc.tx.backend.mu.Lock()
	defer mc.tx.backend.mu.Unlock()

	for _, doc := range docs {
		if _, err := mc.put(doc); err != nil {
			return err
		}
	}

	return nil
}

func (mc *memoryCollection) Delete(ctx context.Context, key string) error {
	if err := mc.tx.guard(true); err != nil {
		return err
	}

	mc.tx.backend.mu.Lock()
	defer mc.tx.backend.mu.Unlock()

	mc.delete(key)
	return nil
}

func (mc *memoryCollection) delete(key string) {
	if doc, exists := mc.table.docs.Get(key); exists {
		mc.table.unindexDocument(key, doc)
		mc.table.docs.Delete(key)
	}
}

func (mc *memoryCollection) DeleteAll(ctx context.Context, keys []string) error {
	if err := mc.tx.guard(true); err != nil {
		return err
	}

	mc.tx.backend.mu.Lock()
	defer mc.tx.backend.mu.Unlock()

	for _, key := range keys {
		mc.delete(key)
	}

	return nil
}

func (mc *memoryCollection) Clear(ctx context.Context) error {
	if err := mc.tx.guard(true); err != nil {
		return err
	}

	mc.tx.backend.mu.Lock()
	defer mc.tx.backend.mu.Unlock()

	mc.table.docs.Clear()
	for _, tree := range mc.table.indexes {
		tree.Clear()
	}

	return nil
}

func (mc *memoryCollection) Count(ctx context.Context) (int64, error) {
	if err := mc.tx.guard(false); err != nil {
		return 0, err
	}

	mc.tx.backend.mu.RLock()
	defer mc.tx.backend.mu.RUnlock()

	return int64(mc.table.docs.Len()), nil
}

func (mc *memoryCollection) GetByIndex(ctx context.Context, index, value string) (backend.Document, error) {
	docs, err := mc.GetAllByIndex(ctx, index, value)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, backend.ErrNotExist
	}

	return docs[0], nil
}

func (mc *memoryCollection) GetAllByIndex(ctx context.Context, index, value string) ([]backend.Document, error) {
	if err := mc.tx.guard(false); err != nil {
		return nil, err
	}

	mc.tx.backend.mu.RLock()
	defer mc.tx.backend.mu.RUnlock()

	tree, exists := mc.table.indexes[index]
	if !exists {
		return nil, backend.ErrUnknownIndex
	}

	keys, exists := tree.Get(value)
	if !exists {
		return nil, nil
	}

	docs := make([]backend.Document, 0, len(keys))
	for _, key := range slices.Sorted(maps.Keys(keys)) {
		if doc, exists := mc.table.docs.Get(key); exists {
			docs = append(docs, maps.Clone(doc))
		}
	}

	return docs, nil
}

func (mc *memoryCollection) Query(ctx context.Context, query backend.Query) ([]backend.Document, error) {
	if err := mc.tx.guard(false); err != nil {
		return nil, err
	}

	mc.tx.backend.mu.RLock()
	defer mc.tx.backend.mu.RUnlock()

	lower, upper := query.Lower, query.Upper
	if query.Only != "" {
		lower, upper = query.Only, query.Only
	}

	inRange := func(value string) bool {
		if lower != "" && value < lower {
			return false
		}
		if upper != "" && value > upper {
			return false
		}
		return true
	}

	var docs []backend.Document
	if query.Index == "" {
		// Primary scan: the key itself is the range value.
		mc.table.docs.Scan(func(key string, doc backend.Document) bool {
			if inRange(key) {
				docs = append(docs, maps.Clone(doc))
			}
			return true
		})
	} else {
		tree, exists := mc.table.indexes[query.Index]
		if !exists {
			return nil, backend.ErrUnknownIndex
		}

		tree.Scan(func(value string, keys map[string]struct{}) bool {
			if !inRange(value) {
				return true
			}
			for _, key := range slices.Sorted(maps.Keys(keys)) {
				if doc, exists := mc.table.docs.Get(key); exists {
					docs = append(docs, maps.Clone(doc))
				}
			}
			return true
		})
	}

	if query.Descending {
		slices.Reverse(docs)
	}

	// Predicate filters the index-narrowed range before pagination.
	if query.Filter != nil {
		filtered := docs[:0]
		for _, doc := range docs {
			if query.Filter(doc) {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	if query.Offset > 0 {
		if query.Offset >= len(docs) {
			return nil, nil
		}
		docs = docs[query.Offset:]
	}

	if query.Limit > 0 && query.Limit < len(docs) {
		docs = docs[:query.Limit]
	}

	return docs, nil
}
