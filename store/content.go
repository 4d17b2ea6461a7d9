package store

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// ContentStore provides typed access to the content collection.
type ContentStore struct{}

func contentToDoc(c *data.Content) backend.Document {
	return backend.Document{
		"ref":     c.Ref,
		"node_id": c.NodeID,
		// Encoded up front so the document shape is identical across the
		// in-memory and the JSON-serializing engines.
		"payload": base64.StdEncoding.EncodeToString(c.Payload),
		"size":    c.Size,
	}
}

func docToContent(doc backend.Document) *data.Content {
	return &data.Content{
		Ref:     backend.String(doc, "ref"),
		NodeID:  backend.String(doc, "node_id"),
		Payload: backend.Bytes(doc, "payload"),
		Size:    backend.Int64(doc, "size"),
	}
}

// Save inserts or updates the content record for its ref.
func (s *ContentStore) Save(ctx context.Context, tx backend.Transaction, c *data.Content) error {
	coll, err := tx.Collection(CollectionContents)
	if err != nil {
		return err
	}

	c.Size = int64(len(c.Payload))
	_, err = coll.Put(ctx, contentToDoc(c))
	return err
}

// Get returns the content record stored under ref.
func (s *ContentStore) Get(ctx context.Context, tx backend.Transaction, ref string) (*data.Content, error) {
	coll, err := tx.Collection(CollectionContents)
	if err != nil {
		return nil, err
	}

	doc, err := coll.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, data.ErrNotFound(ref)
		}
		return nil, err
	}

	return docToContent(doc), nil
}

// Delete removes the content record stored under ref.
func (s *ContentStore) Delete(ctx context.Context, tx backend.Transaction, ref string) error {
	coll, err := tx.Collection(CollectionContents)
	if err != nil {
		return err
	}

	return coll.Delete(ctx, ref)
}
