package data

import (
	"reflect"
	"strings"
)

// SearchQuery describes a node search.
// All set fields must match (AND semantics); zero values are ignored.
type SearchQuery struct {
	// Restrict the search to a single module.
	Module string `json:"module,omitempty"`

	Type NodeType `json:"type,omitempty"`

	// Case-insensitive substring match on the node name.
	NameContains string `json:"name_contains,omitempty"`

	// Every listed tag must be attached to the node.
	Tags []string `json:"tags,omitempty"`

	// Exact metadata key/value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`

	// Maximum number of results; 0 means unlimited.
	Limit int `json:"limit,omitempty"`
}

// Matches checks a node against every filter except Limit.
func (q *SearchQuery) Matches(n *Inode) bool {
	if q.Module != "" && n.ModuleID != q.Module {
		return false
	}

	if q.Type != "" && n.Type != q.Type {
		return false
	}

	if q.NameContains != "" {
		if !strings.Contains(strings.ToLower(n.Name), strings.ToLower(q.NameContains)) {
			return false
		}
	}

	for _, tag := range q.Tags {
		if !n.HasTag(tag) {
			return false
		}
	}

	for key, want := range q.Metadata {
		got, exists := n.Metadata[key]
		if !exists || !metadataEqual(got, want) {
			return false
		}
	}

	return true
}

// metadataEqual compares metadata values across storage engines.
// JSON-backed engines hand numbers back as float64 while the in-memory
// engine keeps the original Go type, so numeric values compare by value
// rather than by type.
func metadataEqual(got, want any) bool {
	gn, gok := asFloat(got)
	wn, wok := asFloat(want)
	if gok && wok {
		return gn == wn
	}

	return reflect.DeepEqual(got, want)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
