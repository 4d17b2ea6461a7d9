package backend_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/backend/memory"
	"github.com/mushuanli/vfs/backend/postgres"
	"github.com/mushuanli/vfs/backend/sqlite"
)

func testSchemas() []backend.Schema {
	return []backend.Schema{
		{
			Name:       "items",
			PrimaryKey: "id",
			Indexes: []backend.Index{
				{Name: "category", Field: "category"},
				{Name: "sku", Field: "sku", Unique: true},
				{Name: "labels", Field: "labels", Multi: true},
			},
		},
		{
			Name:          "entries",
			PrimaryKey:    "id",
			AutoIncrement: true,
		},
	}
}

// Every backend has to pass the same conformance suite.
var factories = map[string]func(t *testing.T) backend.Backend{
	"memory": func(t *testing.T) backend.Backend {
		return memory.NewMemoryBackend(testSchemas()...)
	},
	"sqlite": func(t *testing.T) backend.Backend {
		sb, err := sqlite.NewSQLiteBackend(filepath.Join(t.TempDir(), "test.db"), testSchemas()...)
		if err != nil {
			t.Fatalf("Failed to create sqlite backend: %v", err)
		}
		return sb
	},
	"postgres": func(t *testing.T) backend.Backend {
		dsn := os.Getenv("VFS_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("VFS_POSTGRES_DSN not set")
		}

		// Shared database: wipe whatever a previous run left behind
		pre, err := postgres.NewPostgresBackend(dsn, testSchemas()...)
		if err != nil {
			t.Fatalf("Failed to create postgres backend: %v", err)
		}
		pre.Destroy(context.Background())
		pre.Close(context.Background())

		pb, err := postgres.NewPostgresBackend(dsn, testSchemas()...)
		if err != nil {
			t.Fatalf("Failed to create postgres backend: %v", err)
		}
		return pb
	},
}

func openBackend(t *testing.T, factory func(t *testing.T) backend.Backend) backend.Backend {
	t.Helper()

	b := factory(t)
	if err := b.Open(t.Context()); err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() {
		b.Close(t.Context())
	})

	return b
}

func beginWrite(t *testing.T, b backend.Backend, collections ...string) backend.Transaction {
	t.Helper()

	tx, err := b.Begin(t.Context(), collections, backend.ReadWrite)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	return tx
}

func mustCollection(t *testing.T, tx backend.Transaction, name string) backend.Collection {
	t.Helper()

	coll, err := tx.Collection(name)
	if err != nil {
		t.Fatalf("Failed to get collection '%s': %v", name, err)
	}

	return coll
}

func TestBackendPutGetDelete(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			coll := mustCollection(t, tx, "items")

			doc := backend.Document{"id": "a", "category": "tools", "sku": "sku-1"}
			key, err := coll.Put(t.Context(), doc)
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if key != "a" {
				t.Errorf("Put returned key %q, expected 'a'", key)
			}

			got, err := coll.Get(t.Context(), "a")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if backend.String(got, "category") != "tools" {
				t.Errorf("unexpected document: %v", got)
			}

			if err := coll.Delete(t.Context(), "a"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := coll.Get(t.Context(), "a"); !errors.Is(err, backend.ErrNotExist) {
				t.Errorf("expected ErrNotExist after delete, got %v", err)
			}

			// Deleting again must stay a no-op
			if err := coll.Delete(t.Context(), "a"); err != nil {
				t.Errorf("repeated delete failed: %v", err)
			}

			if err := tx.Commit(t.Context()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
		})
	}
}

func TestBackendMissingPrimaryKey(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"category": "x"}); !errors.Is(err, backend.ErrMissingKey) {
				t.Errorf("expected ErrMissingKey, got %v", err)
			}
		})
	}
}

func TestBackendAutoIncrement(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "entries")

			coll := mustCollection(t, tx, "entries")
			first, err := coll.Put(t.Context(), backend.Document{"value": "x"})
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			second, err := coll.Put(t.Context(), backend.Document{"value": "y"})
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			if first == second {
				t.Errorf("auto-increment produced duplicate key %q", first)
			}
			if first != "1" || second != "2" {
				t.Errorf("expected sequential keys, got %q and %q", first, second)
			}

			if err := tx.Commit(t.Context()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}
		})
	}
}

func TestBackendUniqueIndex(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "sku": "dup"}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			if _, err := coll.Put(t.Context(), backend.Document{"id": "b", "sku": "dup"}); !errors.Is(err, backend.ErrUniqueViolation) {
				t.Errorf("expected ErrUniqueViolation, got %v", err)
			}

			// Replacing the owner itself must pass
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "sku": "dup", "category": "updated"}); err != nil {
				t.Errorf("self-replace failed: %v", err)
			}
		})
	}
}

func TestBackendSecondaryIndex(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			docs := []backend.Document{
				{"id": "a", "category": "tools", "sku": "s1"},
				{"id": "b", "category": "tools", "sku": "s2"},
				{"id": "c", "category": "parts", "sku": "s3"},
			}
			if err := coll.PutAll(t.Context(), docs); err != nil {
				t.Fatalf("PutAll failed: %v", err)
			}

			tools, err := coll.GetAllByIndex(t.Context(), "category", "tools")
			if err != nil {
				t.Fatalf("GetAllByIndex failed: %v", err)
			}
			if len(tools) != 2 {
				t.Errorf("expected 2 tools, got %d", len(tools))
			}

			if _, err := coll.GetByIndex(t.Context(), "category", "nothing"); !errors.Is(err, backend.ErrNotExist) {
				t.Errorf("expected ErrNotExist for empty index value, got %v", err)
			}

			if _, err := coll.GetAllByIndex(t.Context(), "bogus", "x"); !errors.Is(err, backend.ErrUnknownIndex) {
				t.Errorf("expected ErrUnknownIndex, got %v", err)
			}

			// Updating the indexed field must move the index entry
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "category": "parts", "sku": "s1"}); err != nil {
				t.Fatalf("update failed: %v", err)
			}
			parts, err := coll.GetAllByIndex(t.Context(), "category", "parts")
			if err != nil {
				t.Fatalf("GetAllByIndex failed: %v", err)
			}
			if len(parts) != 2 {
				t.Errorf("expected 2 parts after update, got %d", len(parts))
			}
		})
	}
}

func TestBackendMultiIndex(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			doc := backend.Document{"id": "a", "sku": "s1", "labels": []string{"red", "blue"}}
			if _, err := coll.Put(t.Context(), doc); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			for _, label := range []string{"red", "blue"} {
				found, err := coll.GetAllByIndex(t.Context(), "labels", label)
				if err != nil {
					t.Fatalf("GetAllByIndex(%s) failed: %v", label, err)
				}
				if len(found) != 1 {
					t.Errorf("expected 1 document for label %s, got %d", label, len(found))
				}
			}

			// Dropping a label must drop its index entry
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "sku": "s1", "labels": []string{"red"}}); err != nil {
				t.Fatalf("update failed: %v", err)
			}
			blue, err := coll.GetAllByIndex(t.Context(), "labels", "blue")
			if err != nil {
				t.Fatalf("GetAllByIndex failed: %v", err)
			}
			if len(blue) != 0 {
				t.Errorf("expected no documents for removed label, got %d", len(blue))
			}
		})
	}
}

func TestBackendQuery(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)
			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			for _, key := range []string{"a", "b", "c", "d", "e"} {
				doc := backend.Document{"id": key, "sku": "sku-" + key, "category": "bulk"}
				if _, err := coll.Put(t.Context(), doc); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			ranged, err := coll.Query(t.Context(), backend.Query{Lower: "b", Upper: "d"})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(ranged) != 3 {
				t.Errorf("expected 3 documents in [b,d], got %d", len(ranged))
			}

			desc, err := coll.Query(t.Context(), backend.Query{Descending: true, Limit: 2})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(desc) != 2 || backend.String(desc[0], "id") != "e" {
				t.Errorf("descending query wrong: %v", desc)
			}

			paged, err := coll.Query(t.Context(), backend.Query{Offset: 1, Limit: 2})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(paged) != 2 || backend.String(paged[0], "id") != "b" {
				t.Errorf("paged query wrong: %v", paged)
			}

			filtered, err := coll.Query(t.Context(), backend.Query{
				Index: "category",
				Only:  "bulk",
				Filter: func(doc backend.Document) bool {
					return backend.String(doc, "id") > "c"
				},
			})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(filtered) != 2 {
				t.Errorf("expected 2 filtered documents, got %d", len(filtered))
			}

			beyond, err := coll.Query(t.Context(), backend.Query{Offset: 10})
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(beyond) != 0 {
				t.Errorf("offset beyond range should be empty, got %d", len(beyond))
			}
		})
	}
}

func TestBackendCommitPersists(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)

			tx := beginWrite(t, b, "items")
			coll := mustCollection(t, tx, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "sku": "s1"}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := tx.Commit(t.Context()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}

			check, err := b.Begin(t.Context(), []string{"items"}, backend.ReadOnly)
			if err != nil {
				t.Fatalf("Begin failed: %v", err)
			}
			defer check.Abort(t.Context())

			coll = mustCollection(t, check, "items")
			if _, err := coll.Get(t.Context(), "a"); err != nil {
				t.Errorf("committed document missing: %v", err)
			}
		})
	}
}

func TestBackendAbortRestores(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)

			setup := beginWrite(t, b, "items")
			coll := mustCollection(t, setup, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"id": "keep", "sku": "s0", "category": "base"}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := setup.Commit(t.Context()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}

			tx := beginWrite(t, b, "items")
			coll = mustCollection(t, tx, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"id": "gone", "sku": "s1"}); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := coll.Delete(t.Context(), "keep"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := tx.Abort(t.Context()); err != nil {
				t.Fatalf("Abort failed: %v", err)
			}

			check, err := b.Begin(t.Context(), []string{"items"}, backend.ReadOnly)
			if err != nil {
				t.Fatalf("Begin failed: %v", err)
			}
			defer check.Abort(t.Context())

			coll = mustCollection(t, check, "items")
			if _, err := coll.Get(t.Context(), "gone"); !errors.Is(err, backend.ErrNotExist) {
				t.Errorf("aborted insert survived: %v", err)
			}
			if _, err := coll.Get(t.Context(), "keep"); err != nil {
				t.Errorf("aborted delete stuck: %v", err)
			}

			// Index state must roll back with the documents
			base, err := coll.GetAllByIndex(t.Context(), "category", "base")
			if err != nil {
				t.Fatalf("GetAllByIndex failed: %v", err)
			}
			if len(base) != 1 {
				t.Errorf("expected index restored after abort, got %d entries", len(base))
			}
		})
	}
}

func TestBackendReadOnlyRejectsWrites(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)

			tx, err := b.Begin(t.Context(), []string{"items"}, backend.ReadOnly)
			if err != nil {
				t.Fatalf("Begin failed: %v", err)
			}
			defer tx.Abort(t.Context())

			coll := mustCollection(t, tx, "items")
			if _, err := coll.Put(t.Context(), backend.Document{"id": "a", "sku": "s1"}); err == nil {
				t.Error("expected write rejection in read-only transaction")
			}
		})
	}
}

func TestBackendUndeclaredCollection(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)

			tx := beginWrite(t, b, "items")
			defer tx.Abort(t.Context())

			if _, err := tx.Collection("entries"); !errors.Is(err, backend.ErrUnknownCollection) {
				t.Errorf("expected ErrUnknownCollection, got %v", err)
			}
		})
	}
}

func TestBackendTerminalTransaction(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			b := openBackend(t, factory)

			tx := beginWrite(t, b, "items")
			coll := mustCollection(t, tx, "items")
			if err := tx.Commit(t.Context()); err != nil {
				t.Fatalf("Commit failed: %v", err)
			}

			if _, err := coll.Get(t.Context(), "a"); !errors.Is(err, backend.ErrTxDone) {
				t.Errorf("expected ErrTxDone after commit, got %v", err)
			}
			if err := tx.Commit(t.Context()); !errors.Is(err, backend.ErrTxDone) {
				t.Errorf("expected ErrTxDone on double commit, got %v", err)
			}
		})
	}
}
