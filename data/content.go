package data

// Content holds the raw payload of a file node.
// The record lives and dies with its owning node.
type Content struct {
	// Ref is the primary key, derived deterministically from the node id.
	Ref string `json:"ref"`

	// Back-reference to the owning node. Not an ownership pointer;
	// the node's ContentRef field is authoritative.
	NodeID string `json:"node_id"`

	Payload []byte `json:"payload"`
	Size    int64  `json:"size"`
}

// ContentRef derives the content collection key for a node id.
func ContentRef(nodeID string) string {
	return "content_" + nodeID
}
