package store

import (
	"context"
	"errors"
	"time"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// TagStore provides typed access to the tag collection.
// Every refcount change must run inside the same transaction that
// mutates the corresponding node-tag association.
type TagStore struct{}

func tagToDoc(t *data.Tag) backend.Document {
	return backend.Document{
		"name":        t.Name,
		"ref_count":   t.RefCount,
		"create_time": t.CreateTime.Format(time.RFC3339Nano),
	}
}

func docToTag(doc backend.Document) *data.Tag {
	return &data.Tag{
		Name:       backend.String(doc, "name"),
		RefCount:   backend.Int64(doc, "ref_count"),
		CreateTime: backend.Time(doc, "create_time"),
	}
}

// Get returns the tag record stored under name.
func (s *TagStore) Get(ctx context.Context, tx backend.Transaction, name string) (*data.Tag, error) {
	coll, err := tx.Collection(CollectionTags)
	if err != nil {
		return nil, err
	}

	doc, err := coll.Get(ctx, name)
	if err != nil {
		if errors.Is(err, backend.ErrNotExist) {
			return nil, data.ErrNotFound(name)
		}
		return nil, err
	}

	return docToTag(doc), nil
}

// Ensure returns the tag record, creating it with a zero refcount
// when it does not exist yet.
func (s *TagStore) Ensure(ctx context.Context, tx backend.Transaction, name string, now time.Time) (*data.Tag, error) {
	tag, err := s.Get(ctx, tx, name)
	if err == nil {
		return tag, nil
	}
	if !data.IsKind(err, data.KindNotFound) {
		return nil, err
	}

	coll, err := tx.Collection(CollectionTags)
	if err != nil {
		return nil, err
	}

	tag = &data.Tag{
		Name:       name,
		CreateTime: now,
	}

	if _, err := coll.Put(ctx, tagToDoc(tag)); err != nil {
		return nil, err
	}

	return tag, nil
}

// AdjustRefCount shifts the refcount of a tag by delta, clamping at zero.
// A tag whose count reaches zero is removed. Returns the new count.
func (s *TagStore) AdjustRefCount(ctx context.Context, tx backend.Transaction, name string, delta int64) (int64, error) {
	coll, err := tx.Collection(CollectionTags)
	if err != nil {
		return 0, err
	}

	tag, err := s.Get(ctx, tx, name)
	if err != nil {
		if data.IsKind(err, data.KindNotFound) && delta <= 0 {
			// Decrementing an absent tag clamps at zero.
			return 0, nil
		}
		return 0, err
	}

	tag.RefCount += delta
	if tag.RefCount <= 0 {
		if err := coll.Delete(ctx, name); err != nil {
			return 0, err
		}
		return 0, nil
	}

	if _, err := coll.Put(ctx, tagToDoc(tag)); err != nil {
		return 0, err
	}

	return tag.RefCount, nil
}
