package store_test

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/backend/memory"
	"github.com/mushuanli/vfs/backend/sqlite"
	"github.com/mushuanli/vfs/data"
	"github.com/mushuanli/vfs/store"
)

var factories = map[string]func(t *testing.T) backend.Backend{
	"memory": func(t *testing.T) backend.Backend {
		return memory.NewMemoryBackend(store.Schemas()...)
	},
	"sqlite": func(t *testing.T) backend.Backend {
		sb, err := sqlite.NewSQLiteBackend(filepath.Join(t.TempDir(), "store.db"), store.Schemas()...)
		if err != nil {
			t.Fatalf("Failed to create sqlite backend: %v", err)
		}
		return sb
	},
}

func openStores(t *testing.T, factory func(t *testing.T) backend.Backend) *store.Stores {
	t.Helper()

	b := factory(t)
	if err := b.Open(t.Context()); err != nil {
		t.Fatalf("Failed to open backend: %v", err)
	}
	t.Cleanup(func() {
		b.Close(t.Context())
	})

	return store.New(b)
}

func beginWrite(t *testing.T, stores *store.Stores) backend.Transaction {
	t.Helper()

	tx, err := stores.Begin(t.Context(), backend.ReadWrite, store.AllCollections()...)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}

	return tx
}

func testInode(id, module, parentID, path string, nodeType data.NodeType) *data.Inode {
	now := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	return &data.Inode{
		ID:         id,
		ModuleID:   module,
		ParentID:   parentID,
		Name:       data.BaseName(path),
		Path:       path,
		Type:       nodeType,
		CreateTime: now,
		ModifyTime: now,
	}
}

func TestInodeRoundTrip(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			node := testInode("n1", "notes", "", "/a.md", data.NodeTypeFile)
			node.Metadata = map[string]any{"title": "Alpha"}
			node.Size = 42

			if err := stores.Inodes.Put(t.Context(), tx, node); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := stores.Inodes.Get(t.Context(), tx, "n1")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Path != "/a.md" || got.Size != 42 {
				t.Errorf("unexpected node: %+v", got)
			}
			if !got.CreateTime.Equal(node.CreateTime) {
				t.Errorf("create time mangled: %v != %v", got.CreateTime, node.CreateTime)
			}
			if got.GetMetadata("title", "") != "Alpha" {
				t.Errorf("metadata lost: %v", got.Metadata)
			}

			byPath, err := stores.Inodes.GetByPath(t.Context(), tx, "notes", "/a.md")
			if err != nil {
				t.Fatalf("GetByPath failed: %v", err)
			}
			if byPath.ID != "n1" {
				t.Errorf("path lookup returned %s", byPath.ID)
			}

			if _, err := stores.Inodes.Get(t.Context(), tx, "missing"); !data.IsKind(err, data.KindNotFound) {
				t.Errorf("expected NOT_FOUND, got %v", err)
			}
		})
	}
}

func TestInodePathUniquePerModule(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			if err := stores.Inodes.Put(t.Context(), tx, testInode("n1", "notes", "", "/a.md", data.NodeTypeFile)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			// Same path in a different module is a different tree
			if err := stores.Inodes.Put(t.Context(), tx, testInode("n2", "journal", "", "/a.md", data.NodeTypeFile)); err != nil {
				t.Fatalf("cross-module put failed: %v", err)
			}

			err := stores.Inodes.Put(t.Context(), tx, testInode("n3", "notes", "", "/a.md", data.NodeTypeFile))
			if !data.IsKind(err, data.KindAlreadyExists) {
				t.Errorf("expected ALREADY_EXISTS, got %v", err)
			}
		})
	}
}

func TestInodeChildrenSorted(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			root := testInode("root", "notes", "", "/", data.NodeTypeDirectory)
			root.Name = ""
			if err := stores.Inodes.Put(t.Context(), tx, root); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			for _, name := range []string{"zeta", "alpha", "mid"} {
				child := testInode("c-"+name, "notes", "root", "/"+name, data.NodeTypeFile)
				if err := stores.Inodes.Put(t.Context(), tx, child); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			children, err := stores.Inodes.Children(t.Context(), tx, "root")
			if err != nil {
				t.Fatalf("Children failed: %v", err)
			}
			if len(children) != 3 {
				t.Fatalf("expected 3 children, got %d", len(children))
			}
			if children[0].Name != "alpha" || children[2].Name != "zeta" {
				t.Errorf("children not sorted by name: %v", children)
			}
		})
	}
}

func TestInodeResolvePath(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			root := testInode("root", "notes", "", "/", data.NodeTypeDirectory)
			root.Name = ""
			dir := testInode("dir", "notes", "root", "/sub", data.NodeTypeDirectory)
			leaf := testInode("leaf", "notes", "dir", "/sub/deep.md", data.NodeTypeFile)

			for _, n := range []*data.Inode{root, dir, leaf} {
				if err := stores.Inodes.Put(t.Context(), tx, n); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			// Corrupt the cached path, then recompute it from ancestry
			leaf.Path = "/stale"
			resolved, err := stores.Inodes.ResolvePath(t.Context(), tx, leaf)
			if err != nil {
				t.Fatalf("ResolvePath failed: %v", err)
			}
			if resolved != "/sub/deep.md" {
				t.Errorf("ResolvePath = %q, expected /sub/deep.md", resolved)
			}
		})
	}
}

func TestInodeSearch(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			report := testInode("n1", "notes", "", "/report.md", data.NodeTypeFile)
			report.Tags = []string{"work"}
			report.Metadata = map[string]any{"status": "draft", "rev": 42}
			journal := testInode("n2", "notes", "", "/journal.md", data.NodeTypeFile)
			archive := testInode("n3", "journal", "", "/report-old.md", data.NodeTypeFile)

			for _, n := range []*data.Inode{report, journal, archive} {
				if err := stores.Inodes.Put(t.Context(), tx, n); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
				for _, tag := range n.Tags {
					if _, err := stores.Associations.Add(t.Context(), tx, n.ID, tag); err != nil {
						t.Fatalf("Add failed: %v", err)
					}
				}
			}

			byName, err := stores.Inodes.Search(t.Context(), tx, &data.SearchQuery{NameContains: "REPORT"})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(byName) != 2 {
				t.Errorf("case-insensitive name search expected 2, got %d", len(byName))
			}

			byModule, err := stores.Inodes.Search(t.Context(), tx, &data.SearchQuery{Module: "notes", NameContains: "report"})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(byModule) != 1 || byModule[0].ID != "n1" {
				t.Errorf("module-scoped search wrong: %v", byModule)
			}

			byTag, err := stores.Inodes.Search(t.Context(), tx, &data.SearchQuery{Tags: []string{"work"}})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(byTag) != 1 || byTag[0].ID != "n1" {
				t.Errorf("tag search wrong: %v", byTag)
			}

			byMeta, err := stores.Inodes.Search(t.Context(), tx, &data.SearchQuery{Metadata: map[string]any{"status": "draft"}})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(byMeta) != 1 || byMeta[0].ID != "n1" {
				t.Errorf("metadata search wrong: %v", byMeta)
			}

			// Numbers must match regardless of how the engine stores them.
			byNumber, err := stores.Inodes.Search(t.Context(), tx, &data.SearchQuery{Metadata: map[string]any{"rev": 42}})
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(byNumber) != 1 || byNumber[0].ID != "n1" {
				t.Errorf("numeric metadata search wrong: %v", byNumber)
			}
		})
	}
}

func TestContentRoundTrip(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			payload := []byte{0x00, 0xff, 0x7f, 'v', 'f', 's', 0x01}
			content := &data.Content{
				Ref:     data.ContentRef("n1"),
				NodeID:  "n1",
				Payload: payload,
			}
			if err := stores.Contents.Save(t.Context(), tx, content); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if content.Size != int64(len(payload)) {
				t.Errorf("Save did not set size, got %d", content.Size)
			}

			got, err := stores.Contents.Get(t.Context(), tx, content.Ref)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(got.Payload, payload) {
				t.Errorf("payload mangled: %v", got.Payload)
			}
		})
	}
}

func TestTagRefCount(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			now := time.Now().UTC()
			if _, err := stores.Tags.Ensure(t.Context(), tx, "work", now); err != nil {
				t.Fatalf("Ensure failed: %v", err)
			}

			count, err := stores.Tags.AdjustRefCount(t.Context(), tx, "work", 1)
			if err != nil || count != 1 {
				t.Fatalf("AdjustRefCount = %d, %v", count, err)
			}
			count, err = stores.Tags.AdjustRefCount(t.Context(), tx, "work", 1)
			if err != nil || count != 2 {
				t.Fatalf("AdjustRefCount = %d, %v", count, err)
			}

			count, err = stores.Tags.AdjustRefCount(t.Context(), tx, "work", -1)
			if err != nil || count != 1 {
				t.Fatalf("AdjustRefCount = %d, %v", count, err)
			}

			// Last reference removes the record entirely
			count, err = stores.Tags.AdjustRefCount(t.Context(), tx, "work", -1)
			if err != nil || count != 0 {
				t.Fatalf("AdjustRefCount = %d, %v", count, err)
			}
			if _, err := stores.Tags.Get(t.Context(), tx, "work"); !data.IsKind(err, data.KindNotFound) {
				t.Errorf("zero-refcount tag should be gone, got %v", err)
			}

			// Decrementing an absent tag clamps at zero
			count, err = stores.Tags.AdjustRefCount(t.Context(), tx, "work", -1)
			if err != nil || count != 0 {
				t.Errorf("clamped AdjustRefCount = %d, %v", count, err)
			}
		})
	}
}

func TestAssociations(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			stores := openStores(t, factory)
			tx := beginWrite(t, stores)
			defer tx.Abort(t.Context())

			created, err := stores.Associations.Add(t.Context(), tx, "n1", "work")
			if err != nil || !created {
				t.Fatalf("Add = %v, %v", created, err)
			}

			// Duplicate add is a no-op
			created, err = stores.Associations.Add(t.Context(), tx, "n1", "work")
			if err != nil || created {
				t.Errorf("duplicate Add = %v, %v", created, err)
			}

			if _, err := stores.Associations.Add(t.Context(), tx, "n2", "work"); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if _, err := stores.Associations.Add(t.Context(), tx, "n1", "urgent"); err != nil {
				t.Fatalf("Add failed: %v", err)
			}

			tags, err := stores.Associations.TagsForNode(t.Context(), tx, "n1")
			if err != nil {
				t.Fatalf("TagsForNode failed: %v", err)
			}
			if len(tags) != 2 {
				t.Errorf("expected 2 tags for n1, got %v", tags)
			}

			nodes, err := stores.Associations.NodesForTag(t.Context(), tx, "work")
			if err != nil {
				t.Fatalf("NodesForTag failed: %v", err)
			}
			if len(nodes) != 2 {
				t.Errorf("expected 2 nodes for 'work', got %v", nodes)
			}

			removed, err := stores.Associations.Remove(t.Context(), tx, "n1", "work")
			if err != nil || !removed {
				t.Fatalf("Remove = %v, %v", removed, err)
			}
			removed, err = stores.Associations.Remove(t.Context(), tx, "n1", "work")
			if err != nil || removed {
				t.Errorf("absent Remove = %v, %v", removed, err)
			}
		})
	}
}
