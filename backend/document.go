package backend

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Accessors tolerant of JSON round-trips. Engines that persist documents
// as JSON hand back float64 for numbers, base64 strings for byte slices
// and RFC3339 strings for timestamps; the in-memory engine hands back the
// native values. Stores must only read documents through these helpers.

// String reads a string field.
func String(doc Document, field string) string {
	if value, ok := doc[field].(string); ok {
		return value
	}

	return ""
}

// Int64 reads an integer field.
func Int64(doc Document, field string) int64 {
	switch value := doc[field].(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	case json.Number:
		parsed, _ := value.Int64()
		return parsed
	default:
		return 0
	}
}

// Bytes reads a byte-slice field.
func Bytes(doc Document, field string) []byte {
	switch value := doc[field].(type) {
	case []byte:
		return value
	case string:
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return []byte(value)
		}
		return decoded
	default:
		return nil
	}
}

// Time reads a timestamp field.
func Time(doc Document, field string) time.Time {
	switch value := doc[field].(type) {
	case time.Time:
		return value
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return time.Time{}
		}
		return parsed
	default:
		return time.Time{}
	}
}

// Strings reads a string-slice field.
func Strings(doc Document, field string) []string {
	switch value := doc[field].(type) {
	case []string:
		return value
	case []any:
		result := make([]string, 0, len(value))
		for _, element := range value {
			if text, ok := element.(string); ok {
				result = append(result, text)
			}
		}
		return result
	default:
		return nil
	}
}

// Map reads a nested map field.
func Map(doc Document, field string) map[string]any {
	if value, ok := doc[field].(map[string]any); ok {
		return value
	}

	return nil
}

// IndexValues extracts the index entries a document contributes to idx.
// Multi indexes yield one entry per slice element; everything else yields
// at most one. Empty values produce no entry.
func IndexValues(idx Index, doc Document) []string {
	if idx.Multi {
		var values []string
		for _, value := range Strings(doc, idx.Field) {
			if value != "" {
				values = append(values, value)
			}
		}
		return values
	}

	if value := String(doc, idx.Field); value != "" {
		return []string{value}
	}

	return nil
}
