package data

import "time"

// Tag tracks a tag name and how many nodes reference it.
// RefCount never goes negative; a tag is removed once its count reaches zero.
type Tag struct {
	// Name is the primary key.
	Name string `json:"name"`

	RefCount   int64     `json:"ref_count"`
	CreateTime time.Time `json:"create_time"`
}

// NodeTag is a single node-tag association.
// The (NodeID, TagName) pair is unique; ID is the composite key.
type NodeTag struct {
	ID      string `json:"id"`
	NodeID  string `json:"node_id"`
	TagName string `json:"tag_name"`
}

// NodeTagKey builds the composite association key.
func NodeTagKey(nodeID, tag string) string {
	return nodeID + ":" + tag
}
