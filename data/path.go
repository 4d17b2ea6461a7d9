package data

import "strings"

const PathSeparator = "/"

// Characters that are never allowed inside a path segment.
const illegalPathChars = "<>:\"\\|?*\x00"

// NormalizePath collapses repeated separators, forces a leading separator
// and strips a trailing one, except for the root itself.
func NormalizePath(path string) string {
	if path == "" {
		return PathSeparator
	}

	segments := strings.Split(path, PathSeparator)
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment != "" {
			cleaned = append(cleaned, segment)
		}
	}

	if len(cleaned) == 0 {
		return PathSeparator
	}

	return PathSeparator + strings.Join(cleaned, PathSeparator)
}

// SplitPath returns the segments of a normalized path.
// The root yields an empty slice.
func SplitPath(path string) []string {
	path = NormalizePath(path)
	if path == PathSeparator {
		return nil
	}

	return strings.Split(strings.TrimPrefix(path, PathSeparator), PathSeparator)
}

// DirName returns the parent path of a normalized path.
// The parent of the root is the root.
func DirName(path string) string {
	path = NormalizePath(path)
	if path == PathSeparator {
		return PathSeparator
	}

	idx := strings.LastIndex(path, PathSeparator)
	if idx <= 0 {
		return PathSeparator
	}

	return path[:idx]
}

// BaseName returns the last segment of a normalized path.
// The root yields an empty name.
func BaseName(path string) string {
	path = NormalizePath(path)
	if path == PathSeparator {
		return ""
	}

	idx := strings.LastIndex(path, PathSeparator)
	return path[idx+1:]
}

// JoinPath normalizes the concatenation of the given segments.
func JoinPath(segments ...string) string {
	return NormalizePath(strings.Join(segments, PathSeparator))
}

// IsValidPath reports whether a path is acceptable as an operation target.
// Empty input, illegal characters and any '.' or '..' segment are rejected,
// which also closes off directory traversal.
func IsValidPath(path string) bool {
	if path == "" {
		return false
	}

	if strings.ContainsAny(path, illegalPathChars) {
		return false
	}

	for _, segment := range strings.Split(path, PathSeparator) {
		if segment == "." || segment == ".." {
			return false
		}
	}

	return true
}

// HasPathPrefix checks if path lives at or below prefix.
// Both paths must be normalized.
func HasPathPrefix(path, prefix string) bool {
	if prefix == PathSeparator {
		return true
	}

	if path == prefix {
		return true
	}

	return strings.HasPrefix(path, prefix+PathSeparator)
}

// ReplacePathPrefix rewrites the leading prefix of path.
// Used when relocating whole subtrees.
func ReplacePathPrefix(path, oldPrefix, newPrefix string) string {
	if path == oldPrefix {
		return newPrefix
	}

	return newPrefix + strings.TrimPrefix(path, oldPrefix)
}

// SidecarName returns the hidden companion directory name for a file name.
func SidecarName(name string) string {
	return "." + name
}

// SidecarPath returns the companion directory path for a file path.
// The companion always lives alongside its owner.
func SidecarPath(path string) string {
	path = NormalizePath(path)
	return JoinPath(DirName(path), SidecarName(BaseName(path)))
}
