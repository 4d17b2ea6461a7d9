// Package sidecar keeps a file's hidden companion directory in lock-step
// with the file itself. A file '/a/b.md' may own a companion '/a/.b.md'
// holding ancillary resources; every rename, move, copy or delete of the
// file has to carry the companion subtree along, inside the transaction
// of the primary operation.
package sidecar

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
	"github.com/mushuanli/vfs/extension"
	"github.com/mushuanli/vfs/log"
	"github.com/mushuanli/vfs/store"
)

// SidecarExtension is the pipeline participant enforcing the companion
// invariant. It only ever acts on file nodes; directories are never
// sidecar owners.
type SidecarExtension struct {
	stores *store.Stores
	log    *log.Logger

	newID func() string
	now   func() time.Time
}

var (
	_ extension.AfterMover   = (*SidecarExtension)(nil)
	_ extension.AfterDeleter = (*SidecarExtension)(nil)
	_ extension.AfterCopier  = (*SidecarExtension)(nil)
)

type Option func(*SidecarExtension)

// WithIDGenerator overrides how duplicated companion nodes get their ids.
func WithIDGenerator(generator func() string) Option {
	return func(se *SidecarExtension) {
		se.newID = generator
	}
}

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(se *SidecarExtension) {
		se.now = clock
	}
}

func New(stores *store.Stores, logger *log.Logger, opts ...Option) *SidecarExtension {
	se := &SidecarExtension{
		stores: stores,
		log:    logger.Named("sidecar"),
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
		now: time.Now,
	}

	for _, opt := range opts {
		opt(se)
	}

	return se
}

func (*SidecarExtension) Name() string {
	return "sidecar"
}

func (*SidecarExtension) Priority() int {
	return 100
}

// AppliesTo restricts the extension to file nodes.
func (*SidecarExtension) AppliesTo(node *data.Inode) bool {
	return node != nil && node.IsFile()
}

// companion resolves the hidden companion directory for a file path.
// Returns nil without error when none exists.
func (se *SidecarExtension) companion(ctx context.Context, tx backend.Transaction, module, filePath string) (*data.Inode, error) {
	node, err := se.stores.Inodes.GetByPath(ctx, tx, module, data.SidecarPath(filePath))
	if err != nil {
		if data.IsKind(err, data.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return node, nil
}

// subtree collects a node's descendants depth-first, parents before
// children.
func (se *SidecarExtension) subtree(ctx context.Context, tx backend.Transaction, root *data.Inode) ([]*data.Inode, error) {
	var nodes []*data.Inode

	var walk func(parent *data.Inode) error
	walk = func(parent *data.Inode) error {
		children, err := se.stores.Inodes.Children(ctx, tx, parent.ID)
		if err != nil {
			return err
		}

		for _, child := range children {
			nodes = append(nodes, child)
			if err := walk(child); err != nil {
				return err
			}
		}

		return nil
	}

	if err := walk(root); err != nil {
		return nil, err
	}

	return nodes, nil
}

// AfterMove relocates the companion subtree after its owner was moved or
// renamed. A node already occupying the destination companion path makes
// the relocation skip while the primary move stands; the skip is logged.
func (se *SidecarExtension) AfterMove(ctx context.Context, tx backend.Transaction, node *data.Inode, oldPath, newPath string) error {
	companion, err := se.companion(ctx, tx, node.ModuleID, oldPath)
	if err != nil || companion == nil {
		return err
	}

	oldCompanionPath := companion.Path
	newCompanionPath := data.SidecarPath(newPath)

	occupied, err := se.stores.Inodes.GetByPath(ctx, tx, node.ModuleID, newCompanionPath)
	if err != nil && !data.IsKind(err, data.KindNotFound) {
		return err
	}
	if occupied != nil {
		se.log.Warn("companion path '%s' already occupied, skipping relocation of '%s'",
			newCompanionPath, oldCompanionPath)
		return nil
	}

	descendants, err := se.subtree(ctx, tx, companion)
	if err != nil {
		return err
	}

	companion.ParentID = node.ParentID
	companion.Name = data.SidecarName(node.Name)
	companion.Path = newCompanionPath
	companion.ModuleID = node.ModuleID
	companion.ModifyTime = se.now()
	if err := se.stores.Inodes.Put(ctx, tx, companion); err != nil {
		return err
	}

	for _, descendant := range descendants {
		descendant.Path = data.ReplacePathPrefix(descendant.Path, oldCompanionPath, newCompanionPath)
		descendant.ModuleID = node.ModuleID
		if err := se.stores.Inodes.Put(ctx, tx, descendant); err != nil {
			return err
		}
	}

	se.log.Debug("relocated companion '%s' -> '%s' (%d descendants)",
		oldCompanionPath, newCompanionPath, len(descendants))

	return nil
}

// AfterDelete tears the companion subtree down after its owner was
// removed: content records, tag associations and the nodes themselves,
// all within the caller's transaction.
func (se *SidecarExtension) AfterDelete(ctx context.Context, tx backend.Transaction, node *data.Inode) error {
	companion, err := se.companion(ctx, tx, node.ModuleID, node.Path)
	if err != nil || companion == nil {
		return err
	}

	descendants, err := se.subtree(ctx, tx, companion)
	if err != nil {
		return err
	}

	// Children before parents
	doomed := append(descendants, companion)
	slices.Reverse(doomed)

	for _, victim := range doomed {
		if err := se.removeNode(ctx, tx, victim); err != nil {
			return err
		}
	}

	se.log.Debug("removed companion '%s' (%d nodes)", companion.Path, len(doomed))

	return nil
}

func (se *SidecarExtension) removeNode(ctx context.Context, tx backend.Transaction, node *data.Inode) error {
	if node.ContentRef != "" {
		if err := se.stores.Contents.Delete(ctx, tx, node.ContentRef); err != nil {
			return err
		}
	}

	tags, err := se.stores.Associations.TagsForNode(ctx, tx, node.ID)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		removed, err := se.stores.Associations.Remove(ctx, tx, node.ID, tag)
		if err != nil {
			return err
		}
		if removed {
			if _, err := se.stores.Tags.AdjustRefCount(ctx, tx, tag, -1); err != nil {
				return err
			}
		}
	}

	return se.stores.Inodes.Delete(ctx, tx, node.ID)
}

// AfterCopy duplicates the companion subtree for a freshly copied file.
// Every duplicated node gets a fresh id, remapped content refs and
// copied tag associations. Any failure propagates and aborts the whole
// copy, so neither the new primary node nor a partial companion survive.
func (se *SidecarExtension) AfterCopy(ctx context.Context, tx backend.Transaction, source, target *data.Inode) error {
	companion, err := se.companion(ctx, tx, source.ModuleID, source.Path)
	if err != nil || companion == nil {
		return err
	}

	targetCompanionPath := data.SidecarPath(target.Path)
	occupied, err := se.stores.Inodes.GetByPath(ctx, tx, target.ModuleID, targetCompanionPath)
	if err != nil && !data.IsKind(err, data.KindNotFound) {
		return err
	}
	if occupied != nil {
		se.log.Warn("companion path '%s' already occupied, skipping duplication for '%s'",
			targetCompanionPath, target.Path)
		return nil
	}

	count, err := se.duplicate(ctx, tx, companion, target.ParentID, target.ModuleID, targetCompanionPath, data.SidecarName(target.Name))
	if err != nil {
		return err
	}

	se.log.Debug("duplicated companion '%s' -> '%s' (%d nodes)",
		companion.Path, targetCompanionPath, count)

	return nil
}

// duplicate deep-copies a subtree under a new parent, returning the
// number of nodes created.
func (se *SidecarExtension) duplicate(ctx context.Context, tx backend.Transaction, source *data.Inode, parentID, moduleID, path, name string) (int, error) {
	now := se.now()

	clone := source.Clone()
	clone.ID = se.newID()
	clone.ParentID = parentID
	clone.ModuleID = moduleID
	clone.Path = path
	clone.Name = name
	clone.CreateTime = now
	clone.ModifyTime = now
	clone.ContentRef = ""

	if source.ContentRef != "" {
		content, err := se.stores.Contents.Get(ctx, tx, source.ContentRef)
		if err != nil {
			return 0, err
		}

		clone.ContentRef = data.ContentRef(clone.ID)
		copied := &data.Content{
			Ref:     clone.ContentRef,
			NodeID:  clone.ID,
			Payload: content.Payload,
		}
		if err := se.stores.Contents.Save(ctx, tx, copied); err != nil {
			return 0, err
		}
	}

	if err := se.stores.Inodes.Put(ctx, tx, clone); err != nil {
		return 0, err
	}

	for _, tag := range source.Tags {
		created, err := se.stores.Associations.Add(ctx, tx, clone.ID, tag)
		if err != nil {
			return 0, err
		}
		if created {
			if _, err := se.stores.Tags.Ensure(ctx, tx, tag, now); err != nil {
				return 0, err
			}
			if _, err := se.stores.Tags.AdjustRefCount(ctx, tx, tag, 1); err != nil {
				return 0, err
			}
		}
	}

	count := 1
	children, err := se.stores.Inodes.Children(ctx, tx, source.ID)
	if err != nil {
		return 0, err
	}

	for _, child := range children {
		childCount, err := se.duplicate(ctx, tx, child, clone.ID, moduleID,
			data.JoinPath(path, child.Name), child.Name)
		if err != nil {
			return 0, err
		}
		count += childCount
	}

	return count, nil
}
