package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// InodeStore provides typed access to the inode collection.
type InodeStore struct {
	associations *AssociationStore
}

func inodeToDoc(n *data.Inode) backend.Document {
	doc := backend.Document{
		"id":          n.ID,
		"module_id":   n.ModuleID,
		"name":        n.Name,
		"path":        n.Path,
		"module_path": ModulePathKey(n.ModuleID, n.Path),
		"type":        string(n.Type),
		"size":        n.Size,
		"create_time": n.CreateTime.Format(time.RFC3339Nano),
		"modify_time": n.ModifyTime.Format(time.RFC3339Nano),
	}

	if n.ParentID != "" {
		doc["parent_id"] = n.ParentID
	}
	if len(n.Tags) > 0 {
		doc["tags"] = n.Tags
	}
	if len(n.Metadata) > 0 {
		doc["metadata"] = n.Metadata
	}
	if n.ContentRef != "" {
		doc["content_ref"] = n.ContentRef
	}

	return doc
}

func docToInode(doc backend.Document) *data.Inode {
	return &data.Inode{
		ID:         backend.String(doc, "id"),
		ModuleID:   backend.String(doc, "module_id"),
		ParentID:   backend.String(doc, "parent_id"),
		Name:       backend.String(doc, "name"),
		Path:       backend.String(doc, "path"),
		Type:       data.NodeType(backend.String(doc, "type")),
		Size:       backend.Int64(doc, "size"),
		Tags:       backend.Strings(doc, "tags"),
		Metadata:   backend.Map(doc, "metadata"),
		ContentRef: backend.String(doc, "content_ref"),
		CreateTime: backend.Time(doc, "create_time"),
		ModifyTime: backend.Time(doc, "modify_time"),
	}
}

// populateTags joins the association collection into the node.
// Falls back to the denormalized copy on the inode document when the
// transaction was not opened with the association collection.
func (s *InodeStore) populateTags(ctx context.Context, tx backend.Transaction, n *data.Inode) error {
	tags, err := s.associations.TagsForNode(ctx, tx, n.ID)
	if err != nil {
		if errors.Is(err, backend.ErrUnknownCollection) {
			return nil
		}
		return err
	}

	n.Tags = tags
	return nil
}

// Put inserts or replaces an inode.
// A path collision within the module surfaces as ALREADY_EXISTS.
func (s *InodeStore) Put(ctx context.Context, tx backend.Transaction, n *data.Inode) error {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return err
	}

	if _, err := coll.Put(ctx, inodeToDoc(n)); err != nil {
		if errors.Is(err, backend.ErrUniqueViolation) {
			return data.ErrAlreadyExists(n.Path)
		}
		return err
	}

	return nil
}

// Get returns the inode stored under id, with tags populated.
func (s *InodeStore) Get(ctx context.Context, tx backend.Transaction, id string) (*data.Inode, error) {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return nil, err
	}

	doc, err := coll.Get(ctx, id)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, data.ErrNotFound(id)
		}
		return nil, err
	}

	n := docToInode(doc)
	if err := s.populateTags(ctx, tx, n); err != nil {
		return nil, err
	}

	return n, nil
}

// GetByPath resolves a node by its module-scoped path.
func (s *InodeStore) GetByPath(ctx context.Context, tx backend.Transaction, module, path string) (*data.Inode, error) {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return nil, err
	}

	doc, err := coll.GetByIndex(ctx, "path", ModulePathKey(module, data.NormalizePath(path)))
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, data.ErrNotFound(path)
		}
		return nil, err
	}

	n := docToInode(doc)
	if err := s.populateTags(ctx, tx, n); err != nil {
		return nil, err
	}

	return n, nil
}

// Children returns the direct children of a node, sorted by name.
func (s *InodeStore) Children(ctx context.Context, tx backend.Transaction, parentID string) ([]*data.Inode, error) {
	return s.byIndex(ctx, tx, "parent", parentID)
}

// ByModule returns every node of a module.
func (s *InodeStore) ByModule(ctx context.Context, tx backend.Transaction, module string) ([]*data.Inode, error) {
	return s.byIndex(ctx, tx, "module", module)
}

// ByType returns every node of the given type.
func (s *InodeStore) ByType(ctx context.Context, tx backend.Transaction, nodeType data.NodeType) ([]*data.Inode, error) {
	return s.byIndex(ctx, tx, "type", string(nodeType))
}

func (s *InodeStore) byIndex(ctx context.Context, tx backend.Transaction, index, value string) ([]*data.Inode, error) {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return nil, err
	}

	docs, err := coll.GetAllByIndex(ctx, index, value)
	if err != nil {
		return nil, err
	}

	nodes := make([]*data.Inode, 0, len(docs))
	for _, doc := range docs {
		n := docToInode(doc)
		if err := s.populateTags(ctx, tx, n); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	slices.SortFunc(nodes, func(a, b *data.Inode) int {
		return strings.Compare(a.Name, b.Name)
	})

	return nodes, nil
}

// Search runs a composite query over the inode collection.
func (s *InodeStore) Search(ctx context.Context, tx backend.Transaction, query *data.SearchQuery) ([]*data.Inode, error) {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return nil, err
	}

	// Narrow through the most selective available index first; the
	// remaining filters run as the query predicate.
	q := backend.Query{
		Limit: query.Limit,
		Filter: func(doc backend.Document) bool {
			return query.Matches(docToInode(doc))
		},
	}

	switch {
	case len(query.Tags) > 0:
		q.Index, q.Only = "tags", query.Tags[0]
	case query.Module != "":
		q.Index, q.Only = "module", query.Module
	case query.Type != "":
		q.Index, q.Only = "type", string(query.Type)
	}

	docs, err := coll.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	nodes := make([]*data.Inode, 0, len(docs))
	for _, doc := range docs {
		n := docToInode(doc)
		if err := s.populateTags(ctx, tx, n); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	return nodes, nil
}

// Delete removes the inode stored under id.
func (s *InodeStore) Delete(ctx context.Context, tx backend.Transaction, id string) error {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return err
	}

	return coll.Delete(ctx, id)
}

// ResolvePath walks the parent links up to the module root, joins the
// names and refreshes the node's cached path. The cached value must be
// recomputed whenever the node or an ancestor is renamed or moved.
func (s *InodeStore) ResolvePath(ctx context.Context, tx backend.Transaction, n *data.Inode) (string, error) {
	coll, err := tx.Collection(CollectionInodes)
	if err != nil {
		return "", err
	}

	segments := []string{n.Name}
	parentID := n.ParentID
	for parentID != "" {
		doc, err := coll.Get(ctx, parentID)
		if err != nil {
			if errors.Is(err, backend.ErrNotExist) {
				return "", data.ErrNotFound(parentID)
			}
			return "", err
		}

		parent := docToInode(doc)
		if !parent.IsRoot() {
			segments = append(segments, parent.Name)
		}
		parentID = parent.ParentID
	}

	slices.Reverse(segments)
	n.Path = data.JoinPath(segments...)

	return n.Path, nil
}
