package backend

import "context"

// Document is the backend-agnostic record shape.
// Entity stores convert their typed records into documents; engines that
// serialize (sqlite, postgres) round-trip them through JSON, so readers
// must use the accessor helpers in document.go instead of raw assertions.
type Document = map[string]any

// Index describes a secondary index over a single document field.
// Multi indexes treat a string-slice field as one entry per element.
type Index struct {
	Name   string
	Field  string
	Unique bool
	Multi  bool
}

// Schema declares a named collection.
type Schema struct {
	Name string

	// PrimaryKey names the document field holding the key.
	PrimaryKey string

	// AutoIncrement assigns a synthetic numeric key when the
	// primary key field is absent or empty.
	AutoIncrement bool

	Indexes []Index
}

// IndexByName looks up an index definition.
func (s *Schema) IndexByName(name string) (Index, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}

	return Index{}, false
}

// Query describes a composite collection query.
// The index range narrows first, then the predicate filters the remainder,
// then offset and limit apply, in that order.
type Query struct {
	// Index to scan; empty scans the primary key order.
	Index string

	// Only pins the scan to a single index value. Overrides Lower/Upper.
	Only string

	// Inclusive bounds over the index value; empty means unbounded.
	Lower string
	Upper string

	Descending bool

	Offset int
	// Limit of 0 means unlimited.
	Limit int

	// Filter is applied in memory after the index range.
	Filter func(Document) bool
}

// Collection is a single named document collection inside a transaction.
type Collection interface {
	// Get returns the document stored under key.
	// Returns ErrNotExist if the key is absent.
	Get(ctx context.Context, key string) (Document, error)

	// GetAll returns every document in primary key order.
	GetAll(ctx context.Context) ([]Document, error)

	// Put inserts or replaces a document and returns its primary key.
	// Auto-increment collections assign the key when it is missing.
	Put(ctx context.Context, doc Document) (string, error)

	// PutAll bulk-inserts or replaces documents.
	PutAll(ctx context.Context, docs []Document) error

	// Delete removes the document stored under key.
	// Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeleteAll bulk-removes the documents stored under keys.
	DeleteAll(ctx context.Context, keys []string) error

	// Clear removes every document.
	Clear(ctx context.Context) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int64, error)

	// GetByIndex returns the first document whose index field matches value.
	// Returns ErrNotExist when nothing matches.
	GetByIndex(ctx context.Context, index, value string) (Document, error)

	// GetAllByIndex returns every document whose index field matches value.
	GetAllByIndex(ctx context.Context, index, value string) ([]Document, error)

	// Query runs a composite query as described on Query.
	Query(ctx context.Context, query Query) ([]Document, error)
}
