package store

import (
	"context"
	"errors"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// AssociationStore provides typed access to the node-tag collection.
type AssociationStore struct{}

func associationToDoc(a *data.NodeTag) backend.Document {
	return backend.Document{
		"id":       a.ID,
		"node_id":  a.NodeID,
		"tag_name": a.TagName,
	}
}

func docToAssociation(doc backend.Document) *data.NodeTag {
	return &data.NodeTag{
		ID:      backend.String(doc, "id"),
		NodeID:  backend.String(doc, "node_id"),
		TagName: backend.String(doc, "tag_name"),
	}
}

// Add creates the (node, tag) association.
// Returns false when the pair already exists, which lets callers keep
// refcount updates idempotent.
func (s *AssociationStore) Add(ctx context.Context, tx backend.Transaction, nodeID, tag string) (bool, error) {
	coll, err := tx.Collection(CollectionNodeTags)
	if err != nil {
		return false, err
	}

	key := data.NodeTagKey(nodeID, tag)
	if _, err := coll.Get(ctx, key); err == nil {
		return false, nil
	} else if !errors.Is(err, backend.ErrNotExist) {
		return false, err
	}

	assoc := &data.NodeTag{
		ID:      key,
		NodeID:  nodeID,
		TagName: tag,
	}

	if _, err := coll.Put(ctx, associationToDoc(assoc)); err != nil {
		return false, err
	}

	return true, nil
}

// Remove deletes the (node, tag) association.
// Removing an absent pair is a no-op and returns false.
func (s *AssociationStore) Remove(ctx context.Context, tx backend.Transaction, nodeID, tag string) (bool, error) {
	coll, err := tx.Collection(CollectionNodeTags)
	if err != nil {
		return false, err
	}

	key := data.NodeTagKey(nodeID, tag)
	if _, err := coll.Get(ctx, key); err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return false, nil
		}
		return false, err
	}

	if err := coll.Delete(ctx, key); err != nil {
		return false, err
	}

	return true, nil
}

// TagsForNode returns every tag attached to a node.
func (s *AssociationStore) TagsForNode(ctx context.Context, tx backend.Transaction, nodeID string) ([]string, error) {
	coll, err := tx.Collection(CollectionNodeTags)
	if err != nil {
		return nil, err
	}

	docs, err := coll.GetAllByIndex(ctx, "node", nodeID)
	if err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(docs))
	for _, doc := range docs {
		tags = append(tags, docToAssociation(doc).TagName)
	}

	return tags, nil
}

// NodesForTag returns the ids of every node carrying the tag.
func (s *AssociationStore) NodesForTag(ctx context.Context, tx backend.Transaction, tag string) ([]string, error) {
	coll, err := tx.Collection(CollectionNodeTags)
	if err != nil {
		return nil, err
	}

	docs, err := coll.GetAllByIndex(ctx, "tag", tag)
	if err != nil {
		return nil, err
	}

	nodes := make([]string, 0, len(docs))
	for _, doc := range docs {
		nodes = append(nodes, docToAssociation(doc).NodeID)
	}

	return nodes, nil
}
