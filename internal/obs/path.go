package obs

import "strings"

// CanonicalPath collapses resource identifiers so metric labels stay low
// cardinality. Unknown paths are returned as-is minus any query string.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if rest, ok := strings.CutPrefix(path, "/api/vehicles/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/api/vehicles/:id"
	}
	return path
}
