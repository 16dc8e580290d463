package importer

import (
	"path/filepath"
	"strings"
)

// Relativize returns path relative to base when path lies under base,
// otherwise it returns path unchanged. Both arguments are treated as
// cleaned absolute paths; the function never touches the filesystem.
// Relative results use forward slashes so they are stable across hosts.
func Relativize(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
