package vfs

import (
	"context"
	"slices"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// CreateNode creates a file or directory at the given module-scoped
// path. Missing ancestor directories are created on the way down; the
// module root materializes on first use. For files, content may be nil
// to create an empty node.
func (fs *FileSystem) CreateNode(ctx context.Context, module, path string, nodeType data.NodeType, content []byte, metadata map[string]any) (*data.Inode, error) {
	if module == "" {
		return nil, data.ErrInvalidOperation("module must not be empty")
	}
	if !data.IsValidPath(path) {
		return nil, data.ErrInvalidPath(path)
	}
	if nodeType != data.NodeTypeFile && nodeType != data.NodeTypeDirectory {
		return nil, data.ErrInvalidOperation("unknown node type '%s'", nodeType)
	}
	if nodeType == data.NodeTypeDirectory && content != nil {
		return nil, data.ErrInvalidOperation("directories cannot carry content")
	}

	path = data.NormalizePath(path)
	if path == data.PathSeparator {
		return nil, data.ErrInvalidPath(path)
	}

	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, err := fs.createNode(ctx, tx, module, path, nodeType, content, metadata)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	fs.log.Debug("created %s '%s' in module '%s'", node.Type, node.Path, module)
	fs.events.Emit(Event{Name: EventNodeCreated, Node: node})

	return node, nil
}

func (fs *FileSystem) createNode(ctx context.Context, tx backend.Transaction, module, path string, nodeType data.NodeType, content []byte, metadata map[string]any) (*data.Inode, error) {
	if _, err := fs.stores.Inodes.GetByPath(ctx, tx, module, path); err == nil {
		return nil, data.ErrAlreadyExists(path)
	} else if !data.IsKind(err, data.KindNotFound) {
		return nil, err
	}

	parent, err := fs.ensureDirectory(ctx, tx, module, data.DirName(path))
	if err != nil {
		return nil, err
	}

	now := fs.now()
	node := &data.Inode{
		ID:         fs.newID(),
		ModuleID:   module,
		ParentID:   parent.ID,
		Name:       data.BaseName(path),
		Path:       path,
		Type:       nodeType,
		Metadata:   metadata,
		CreateTime: now,
		ModifyTime: now,
	}

	if node.IsFile() {
		if err := fs.pipeline.Validate(ctx, node, content); err != nil {
			return nil, err
		}
	}

	if node.IsFile() && content != nil {
		content, err = fs.pipeline.BeforeWrite(ctx, tx, node, content)
		if err != nil {
			return nil, err
		}

		node.ContentRef = data.ContentRef(node.ID)
		node.Size = int64(len(content))
		record := &data.Content{
			Ref:     node.ContentRef,
			NodeID:  node.ID,
			Payload: content,
		}
		if err := fs.stores.Contents.Save(ctx, tx, record); err != nil {
			return nil, err
		}

		derived, err := fs.pipeline.AfterWrite(ctx, tx, node, content)
		if err != nil {
			return nil, err
		}
		for key, value := range derived {
			node.SetMetadata(key, value)
		}
	}

	if err := fs.stores.Inodes.Put(ctx, tx, node); err != nil {
		return nil, err
	}

	return node, nil
}

// ensureDirectory resolves a directory path, materializing the module
// root and any missing intermediate directories.
func (fs *FileSystem) ensureDirectory(ctx context.Context, tx backend.Transaction, module, path string) (*data.Inode, error) {
	current, err := fs.stores.Inodes.GetByPath(ctx, tx, module, data.PathSeparator)
	if err != nil {
		if !data.IsKind(err, data.KindNotFound) {
			return nil, err
		}

		now := fs.now()
		current = &data.Inode{
			ID:         fs.newID(),
			ModuleID:   module,
			Path:       data.PathSeparator,
			Type:       data.NodeTypeDirectory,
			CreateTime: now,
			ModifyTime: now,
		}
		if err := fs.stores.Inodes.Put(ctx, tx, current); err != nil {
			return nil, err
		}
	}

	walked := data.PathSeparator
	for _, segment := range data.SplitPath(path) {
		walked = data.JoinPath(walked, segment)

		next, err := fs.stores.Inodes.GetByPath(ctx, tx, module, walked)
		if err != nil {
			if !data.IsKind(err, data.KindNotFound) {
				return nil, err
			}

			now := fs.now()
			next = &data.Inode{
				ID:         fs.newID(),
				ModuleID:   module,
				ParentID:   current.ID,
				Name:       segment,
				Path:       walked,
				Type:       data.NodeTypeDirectory,
				CreateTime: now,
				ModifyTime: now,
			}
			if err := fs.stores.Inodes.Put(ctx, tx, next); err != nil {
				return nil, err
			}
		}

		if !next.IsDir() {
			return nil, data.ErrInvalidOperation("'%s' is not a directory", walked)
		}
		current = next
	}

	return current, nil
}

// Read returns the content of a file node. A file that was never
// written yields an empty payload.
func (fs *FileSystem) Read(ctx context.Context, id string) ([]byte, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, data.ErrInvalidOperation("cannot read directory '%s'", node.Path)
	}
	if node.ContentRef == "" {
		return []byte{}, nil
	}

	content, err := fs.stores.Contents.Get(ctx, tx, node.ContentRef)
	if err != nil {
		return nil, err
	}

	return content.Payload, nil
}

// Write replaces the content of a file node, running the pipeline's
// validate, before-write and after-write hooks around the persist.
func (fs *FileSystem) Write(ctx context.Context, id string, content []byte) (*data.Inode, error) {
	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, err := fs.write(ctx, tx, id, content)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	fs.events.Emit(Event{Name: EventNodeUpdated, Node: node})

	return node, nil
}

func (fs *FileSystem) write(ctx context.Context, tx backend.Transaction, id string, content []byte) (*data.Inode, error) {
	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !node.IsFile() {
		return nil, data.ErrInvalidOperation("cannot write directory '%s'", node.Path)
	}

	if err := fs.pipeline.Validate(ctx, node, content); err != nil {
		return nil, err
	}

	content, err = fs.pipeline.BeforeWrite(ctx, tx, node, content)
	if err != nil {
		return nil, err
	}

	if node.ContentRef == "" {
		node.ContentRef = data.ContentRef(node.ID)
	}
	record := &data.Content{
		Ref:     node.ContentRef,
		NodeID:  node.ID,
		Payload: content,
	}
	if err := fs.stores.Contents.Save(ctx, tx, record); err != nil {
		return nil, err
	}

	node.Size = int64(len(content))
	node.ModifyTime = fs.now()

	derived, err := fs.pipeline.AfterWrite(ctx, tx, node, content)
	if err != nil {
		return nil, err
	}
	for key, value := range derived {
		node.SetMetadata(key, value)
	}

	if err := fs.stores.Inodes.Put(ctx, tx, node); err != nil {
		return nil, err
	}

	return node, nil
}

// Unlink removes a node. Removing a non-empty directory requires
// recursive; removing an id that no longer exists is a no-op that still
// reports the id as removed. The result lists every node the cascade
// took down, including companions removed by extensions.
func (fs *FileSystem) Unlink(ctx context.Context, id string, recursive bool) (*data.UnlinkResult, error) {
	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		fs.abort(ctx, tx)
		if data.IsKind(err, data.KindNotFound) {
			return &data.UnlinkResult{RemovedNodeID: id, AllRemovedIDs: []string{}}, nil
		}
		return nil, err
	}

	result, err := fs.unlink(ctx, tx, node, recursive)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	fs.log.Debug("removed '%s' (%d nodes)", node.Path, len(result.AllRemovedIDs))
	fs.events.Emit(Event{Name: EventNodeDeleted, Node: node, RemovedIDs: result.AllRemovedIDs})
	if len(result.AllRemovedIDs) > 1 {
		fs.events.Emit(Event{Name: EventNodeBulkDeleted, Node: node, RemovedIDs: result.AllRemovedIDs})
	}

	return result, nil
}

func (fs *FileSystem) unlink(ctx context.Context, tx backend.Transaction, node *data.Inode, recursive bool) (*data.UnlinkResult, error) {
	if node.IsDir() {
		children, err := fs.stores.Inodes.Children(ctx, tx, node.ID)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 && !recursive {
			return nil, data.ErrDirectoryNotEmpty(node.Path)
		}
	}

	// Extensions may cascade beyond the subtree, so the removed set is
	// computed by diffing the module's nodes around the deletion.
	before, err := fs.moduleNodeIDs(ctx, tx, node.ModuleID)
	if err != nil {
		return nil, err
	}

	doomed, err := fs.collectSubtree(ctx, tx, node)
	if err != nil {
		return nil, err
	}

	// Leaves first
	slices.Reverse(doomed)
	for _, victim := range doomed {
		if err := fs.pipeline.BeforeDelete(ctx, tx, victim); err != nil {
			return nil, err
		}
		if err := fs.removeNodeRecords(ctx, tx, victim); err != nil {
			return nil, err
		}
		if err := fs.pipeline.AfterDelete(ctx, tx, victim); err != nil {
			return nil, err
		}
	}

	after, err := fs.moduleNodeIDs(ctx, tx, node.ModuleID)
	if err != nil {
		return nil, err
	}

	removed := make([]string, 0, len(before))
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}

	return &data.UnlinkResult{
		RemovedNodeID: node.ID,
		AllRemovedIDs: removed,
	}, nil
}

func (fs *FileSystem) moduleNodeIDs(ctx context.Context, tx backend.Transaction, module string) ([]string, error) {
	nodes, err := fs.stores.Inodes.ByModule(ctx, tx, module)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	return ids, nil
}

// collectSubtree returns a node and all its descendants, parents first.
func (fs *FileSystem) collectSubtree(ctx context.Context, tx backend.Transaction, root *data.Inode) ([]*data.Inode, error) {
	nodes := []*data.Inode{root}

	var walk func(parent *data.Inode) error
	walk = func(parent *data.Inode) error {
		children, err := fs.stores.Inodes.Children(ctx, tx, parent.ID)
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

// removeNodeRecords deletes a node, its content record and its tag
// associations, keeping tag refcounts in step.
func (fs *FileSystem) removeNodeRecords(ctx context.Context, tx backend.Transaction, node *data.Inode) error {
	if node.ContentRef != "" {
		if err := fs.stores.Contents.Delete(ctx, tx, node.ContentRef); err != nil {
			return err
		}
	}

	tags, err := fs.stores.Associations.TagsForNode(ctx, tx, node.ID)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		removed, err := fs.stores.Associations.Remove(ctx, tx, node.ID, tag)
		if err != nil {
			return err
		}
		if removed {
			if _, err := fs.stores.Tags.AdjustRefCount(ctx, tx, tag, -1); err != nil {
				return err
			}
		}
	}

	return fs.stores.Inodes.Delete(ctx, tx, node.ID)
}

// Move relocates or renames a node within its module, rewriting the
// cached paths of the whole subtree. The destination parent must
// already exist.
func (fs *FileSystem) Move(ctx context.Context, id, newPath string) (*data.Inode, error) {
	if !data.IsValidPath(newPath) {
		return nil, data.ErrInvalidPath(newPath)
	}
	newPath = data.NormalizePath(newPath)
	if newPath == data.PathSeparator {
		return nil, data.ErrInvalidPath(newPath)
	}

	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, oldPath, err := fs.move(ctx, tx, id, newPath)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	fs.log.Debug("moved '%s' -> '%s'", oldPath, newPath)
	fs.events.Emit(Event{Name: EventNodeMoved, Node: node, OldPath: oldPath, NewPath: newPath})

	return node, nil
}

func (fs *FileSystem) move(ctx context.Context, tx backend.Transaction, id, newPath string) (*data.Inode, string, error) {
	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		return nil, "", err
	}
	if node.IsRoot() {
		return nil, "", data.ErrInvalidOperation("cannot move module root")
	}

	oldPath := node.Path
	if newPath == oldPath {
		return node, oldPath, nil
	}
	if node.IsDir() && data.HasPathPrefix(newPath, oldPath) {
		return nil, "", data.ErrInvalidOperation("cannot move '%s' into its own subtree", oldPath)
	}

	if _, err := fs.stores.Inodes.GetByPath(ctx, tx, node.ModuleID, newPath); err == nil {
		return nil, "", data.ErrAlreadyExists(newPath)
	} else if !data.IsKind(err, data.KindNotFound) {
		return nil, "", err
	}

	parent, err := fs.stores.Inodes.GetByPath(ctx, tx, node.ModuleID, data.DirName(newPath))
	if err != nil {
		return nil, "", err
	}
	if !parent.IsDir() {
		return nil, "", data.ErrInvalidOperation("'%s' is not a directory", parent.Path)
	}

	descendants, err := fs.collectSubtree(ctx, tx, node)
	if err != nil {
		return nil, "", err
	}

	node.ParentID = parent.ID
	node.Name = data.BaseName(newPath)
	node.Path = newPath
	node.ModifyTime = fs.now()
	if err := fs.stores.Inodes.Put(ctx, tx, node); err != nil {
		return nil, "", err
	}

	for _, descendant := range descendants[1:] {
		descendant.Path = data.ReplacePathPrefix(descendant.Path, oldPath, newPath)
		if err := fs.stores.Inodes.Put(ctx, tx, descendant); err != nil {
			return nil, "", err
		}
	}

	if err := fs.pipeline.AfterMove(ctx, tx, node, oldPath, newPath); err != nil {
		return nil, "", err
	}

	return node, oldPath, nil
}

// Copy duplicates a node (and, for directories, its whole subtree) at a
// new path. Every duplicate gets a fresh id, its own content record and
// copied tag associations. Extension failures abort the entire copy.
func (fs *FileSystem) Copy(ctx context.Context, id, newPath string) (*data.Inode, error) {
	if !data.IsValidPath(newPath) {
		return nil, data.ErrInvalidPath(newPath)
	}
	newPath = data.NormalizePath(newPath)
	if newPath == data.PathSeparator {
		return nil, data.ErrInvalidPath(newPath)
	}

	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	source, target, err := fs.copy(ctx, tx, id, newPath)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	fs.log.Debug("copied '%s' -> '%s'", source.Path, newPath)
	fs.events.Emit(Event{Name: EventNodeCopied, Node: target, SourceID: source.ID})

	return target, nil
}

func (fs *FileSystem) copy(ctx context.Context, tx backend.Transaction, id, newPath string) (*data.Inode, *data.Inode, error) {
	source, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if source.IsRoot() {
		return nil, nil, data.ErrInvalidOperation("cannot copy module root")
	}
	if source.IsDir() && data.HasPathPrefix(newPath, source.Path) {
		return nil, nil, data.ErrInvalidOperation("cannot copy '%s' into its own subtree", source.Path)
	}

	if _, err := fs.stores.Inodes.GetByPath(ctx, tx, source.ModuleID, newPath); err == nil {
		return nil, nil, data.ErrAlreadyExists(newPath)
	} else if !data.IsKind(err, data.KindNotFound) {
		return nil, nil, err
	}

	parent, err := fs.stores.Inodes.GetByPath(ctx, tx, source.ModuleID, data.DirName(newPath))
	if err != nil {
		return nil, nil, err
	}
	if !parent.IsDir() {
		return nil, nil, data.ErrInvalidOperation("'%s' is not a directory", parent.Path)
	}

	target, err := fs.copySubtree(ctx, tx, source, parent.ID, newPath, data.BaseName(newPath))
	if err != nil {
		return nil, nil, err
	}

	if err := fs.pipeline.AfterCopy(ctx, tx, source, target); err != nil {
		return nil, nil, err
	}

	return source, target, nil
}

func (fs *FileSystem) copySubtree(ctx context.Context, tx backend.Transaction, source *data.Inode, parentID, path, name string) (*data.Inode, error) {
	now := fs.now()

	clone := source.Clone()
	clone.ID = fs.newID()
	clone.ParentID = parentID
	clone.Path = path
	clone.Name = name
	clone.CreateTime = now
	clone.ModifyTime = now
	clone.ContentRef = ""

	if source.ContentRef != "" {
		content, err := fs.stores.Contents.Get(ctx, tx, source.ContentRef)
		if err != nil {
			return nil, err
		}

		clone.ContentRef = data.ContentRef(clone.ID)
		record := &data.Content{
			Ref:     clone.ContentRef,
			NodeID:  clone.ID,
			Payload: content.Payload,
		}
		if err := fs.stores.Contents.Save(ctx, tx, record); err != nil {
			return nil, err
		}
	}

	if err := fs.stores.Inodes.Put(ctx, tx, clone); err != nil {
		return nil, err
	}

	for _, tag := range source.Tags {
		created, err := fs.stores.Associations.Add(ctx, tx, clone.ID, tag)
		if err != nil {
			return nil, err
		}
		if created {
			if _, err := fs.stores.Tags.Ensure(ctx, tx, tag, now); err != nil {
				return nil, err
			}
			if _, err := fs.stores.Tags.AdjustRefCount(ctx, tx, tag, 1); err != nil {
				return nil, err
			}
		}
	}

	children, err := fs.stores.Inodes.Children(ctx, tx, source.ID)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		if _, err := fs.copySubtree(ctx, tx, child, clone.ID,
			data.JoinPath(path, child.Name), child.Name); err != nil {
			return nil, err
		}
	}

	return clone, nil
}

// ReadDir lists the children of a directory, sorted by name. With
// recursive, the whole subtree is returned depth-first.
func (fs *FileSystem) ReadDir(ctx context.Context, id string, recursive bool) ([]*data.Inode, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !node.IsDir() {
		return nil, data.ErrInvalidOperation("'%s' is not a directory", node.Path)
	}

	if !recursive {
		return fs.stores.Inodes.Children(ctx, tx, node.ID)
	}

	nodes, err := fs.collectSubtree(ctx, tx, node)
	if err != nil {
		return nil, err
	}

	return nodes[1:], nil
}

// Stat returns the node stored under id.
func (fs *FileSystem) Stat(ctx context.Context, id string) (*data.Inode, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	return fs.stores.Inodes.Get(ctx, tx, id)
}

// StatPath resolves a node by its module-scoped path.
func (fs *FileSystem) StatPath(ctx context.Context, module, path string) (*data.Inode, error) {
	if !data.IsValidPath(path) {
		return nil, data.ErrInvalidPath(path)
	}

	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	return fs.stores.Inodes.GetByPath(ctx, tx, module, path)
}

// AddTag attaches a tag to a node. Attaching an already present tag is
// a no-op that leaves the refcount untouched.
func (fs *FileSystem) AddTag(ctx context.Context, id, tag string) (*data.Inode, error) {
	if tag == "" {
		return nil, data.ErrInvalidOperation("tag must not be empty")
	}

	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	created, err := fs.stores.Associations.Add(ctx, tx, node.ID, tag)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if created {
		if _, err := fs.stores.Tags.Ensure(ctx, tx, tag, fs.now()); err != nil {
			fs.abort(ctx, tx)
			return nil, err
		}
		if _, err := fs.stores.Tags.AdjustRefCount(ctx, tx, tag, 1); err != nil {
			fs.abort(ctx, tx)
			return nil, err
		}

		node.Tags = append(node.Tags, tag)
		node.ModifyTime = fs.now()
		if err := fs.stores.Inodes.Put(ctx, tx, node); err != nil {
			fs.abort(ctx, tx)
			return nil, err
		}
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	if created {
		fs.events.Emit(Event{Name: EventNodeUpdated, Node: node})
	}

	return node, nil
}

// RemoveTag detaches a tag from a node. Detaching an absent tag is a
// no-op.
func (fs *FileSystem) RemoveTag(ctx context.Context, id, tag string) (*data.Inode, error) {
	tx, err := fs.begin(ctx, backend.ReadWrite)
	if err != nil {
		return nil, err
	}

	node, err := fs.stores.Inodes.Get(ctx, tx, id)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	removed, err := fs.stores.Associations.Remove(ctx, tx, node.ID, tag)
	if err != nil {
		fs.abort(ctx, tx)
		return nil, err
	}

	if removed {
		if _, err := fs.stores.Tags.AdjustRefCount(ctx, tx, tag, -1); err != nil {
			fs.abort(ctx, tx)
			return nil, err
		}

		node.Tags = slices.DeleteFunc(node.Tags, func(t string) bool { return t == tag })
		node.ModifyTime = fs.now()
		if err := fs.stores.Inodes.Put(ctx, tx, node); err != nil {
			fs.abort(ctx, tx)
			return nil, err
		}
	}

	if err := fs.commit(ctx, tx); err != nil {
		return nil, err
	}

	if removed {
		fs.events.Emit(Event{Name: EventNodeUpdated, Node: node})
	}

	return node, nil
}

// Tags returns every tag attached to a node.
func (fs *FileSystem) Tags(ctx context.Context, id string) ([]string, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	if _, err := fs.stores.Inodes.Get(ctx, tx, id); err != nil {
		return nil, err
	}

	return fs.stores.Associations.TagsForNode(ctx, tx, id)
}

// TagRefCount returns the current refcount of a tag; zero when the tag
// does not exist.
func (fs *FileSystem) TagRefCount(ctx context.Context, tag string) (int64, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return 0, err
	}
	defer fs.abort(ctx, tx)

	record, err := fs.stores.Tags.Get(ctx, tx, tag)
	if err != nil {
		if data.IsKind(err, data.KindNotFound) {
			return 0, nil
		}
		return 0, err
	}

	return record.RefCount, nil
}

// Search runs a composite query over the nodes of all modules.
func (fs *FileSystem) Search(ctx context.Context, query *data.SearchQuery) ([]*data.Inode, error) {
	tx, err := fs.begin(ctx, backend.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fs.abort(ctx, tx)

	return fs.stores.Inodes.Search(ctx, tx, query)
}
