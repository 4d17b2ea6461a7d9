package data

import (
	"maps"
	"slices"
	"time"
)

// NodeType classifies a node inside a module tree.
type NodeType string

const (
	NodeTypeFile      NodeType = "file"
	NodeTypeDirectory NodeType = "directory"
)

// Inode represents a single named node inside a module.
// Nodes are stored flat, keyed by ID; the tree shape is derived from ParentID.
// Path is the cached join of all ancestor names and gets rewritten whenever
// the node or one of its ancestors is renamed or moved.
type Inode struct {
	// Identity - unique identifier
	ID string `json:"id"`

	// Module this node belongs to. Every module forms an independent tree.
	ModuleID string `json:"module_id"`

	// Parent node; empty for module roots.
	ParentID string `json:"parent_id,omitempty"`

	// Base name of the node
	Name string `json:"name"`

	// Absolute path within the module, derived from ancestry.
	Path string `json:"path"`

	Type NodeType `json:"type"`

	// Tags currently attached to this node. The node-tag association
	// collection stays authoritative; this copy exists for index queries.
	Tags []string `json:"tags,omitempty"`

	// Extended metadata (host- or extension-specific)
	Metadata map[string]any `json:"metadata,omitempty"`

	// Reference into the content collection; empty until first write.
	// Only set for file nodes.
	ContentRef string `json:"content_ref,omitempty"`

	Size int64 `json:"size"`

	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
}

// IsDir returns true if this node is a directory.
func (n *Inode) IsDir() bool {
	return n.Type == NodeTypeDirectory
}

// IsFile returns true if this node is a regular file.
func (n *Inode) IsFile() bool {
	return n.Type == NodeTypeFile
}

// IsRoot returns true if this node is a module root.
func (n *Inode) IsRoot() bool {
	return n.ParentID == ""
}

// HasTag checks if the tag is attached to this node.
func (n *Inode) HasTag(tag string) bool {
	return slices.Contains(n.Tags, tag)
}

// Clone creates a deep copy of the node.
func (n *Inode) Clone() *Inode {
	clone := *n
	clone.Tags = slices.Clone(n.Tags)
	clone.Metadata = n.CloneMetadata()

	return &clone
}

// CloneMetadata creates a copy of the metadata map.
func (n *Inode) CloneMetadata() map[string]any {
	if n.Metadata == nil {
		return nil
	}

	clone := make(map[string]any, len(n.Metadata))
	maps.Copy(clone, n.Metadata)

	return clone
}

// GetMetadata safely retrieves metadata with a default value.
func (n *Inode) GetMetadata(key string, defaultValue any) any {
	if n.Metadata == nil {
		return defaultValue
	}

	if value, exists := n.Metadata[key]; exists {
		return value
	}

	return defaultValue
}

// SetMetadata safely sets metadata, initializing the map if needed.
func (n *Inode) SetMetadata(key string, value any) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}

	n.Metadata[key] = value
}

// UnlinkResult reports what an unlink operation removed.
// AllRemovedIDs covers the full cascade, including the node itself.
type UnlinkResult struct {
	RemovedNodeID string   `json:"removed_node_id"`
	AllRemovedIDs []string `json:"all_removed_ids"`
}
