package store

import (
	"context"

	"github.com/mushuanli/vfs/backend"
)

// Collection names used by the VFS core.
const (
	CollectionInodes   = "inodes"
	CollectionContents = "contents"
	CollectionTags     = "tags"
	CollectionNodeTags = "node_tags"
)

// Schemas declares every collection the VFS core needs.
// Backends are constructed with exactly these schemas.
func Schemas() []backend.Schema {
	return []backend.Schema{
		{
			Name:       CollectionInodes,
			PrimaryKey: "id",
			Indexes: []backend.Index{
				// module_path is a synthetic field combining module and
				// path, which makes paths unique per module.
				{Name: "path", Field: "module_path", Unique: true},
				{Name: "parent", Field: "parent_id"},
				{Name: "module", Field: "module_id"},
				{Name: "type", Field: "type"},
				{Name: "tags", Field: "tags", Multi: true},
			},
		},
		{
			Name:       CollectionContents,
			PrimaryKey: "ref",
			Indexes: []backend.Index{
				{Name: "node", Field: "node_id", Unique: true},
			},
		},
		{
			Name:       CollectionTags,
			PrimaryKey: "name",
		},
		{
			Name:       CollectionNodeTags,
			PrimaryKey: "id",
			Indexes: []backend.Index{
				{Name: "node", Field: "node_id"},
				{Name: "tag", Field: "tag_name"},
			},
		},
	}
}

// AllCollections returns every collection name.
func AllCollections() []string {
	return []string{
		CollectionInodes,
		CollectionContents,
		CollectionTags,
		CollectionNodeTags,
	}
}

// ModulePathKey builds the synthetic per-module path index value.
func ModulePathKey(module, path string) string {
	return module + ":" + path
}

// Stores bundles the typed entity stores over a single backend.
// The stores themselves are stateless; every method operates on the
// transaction the caller opened.
type Stores struct {
	Backend backend.Backend

	Inodes       *InodeStore
	Contents     *ContentStore
	Tags         *TagStore
	Associations *AssociationStore
}

func New(b backend.Backend) *Stores {
	stores := &Stores{Backend: b}

	stores.Associations = &AssociationStore{}
	stores.Inodes = &InodeStore{associations: stores.Associations}
	stores.Contents = &ContentStore{}
	stores.Tags = &TagStore{}

	return stores
}

// Begin opens a transaction over the named collections.
func (s *Stores) Begin(ctx context.Context, mode backend.Mode, collections ...string) (backend.Transaction, error) {
	return s.Backend.Begin(ctx, collections, mode)
}
