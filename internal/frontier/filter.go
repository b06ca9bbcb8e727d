package frontier

import (
	"path"
	"strings"
)

// allowedPath applies ignore patterns first, then follow patterns.
func allowedPath(p string, ignore, follow []string) bool {
	if p == "" {
		p = "/"
	}

	for _, pattern := range ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}

	if len(follow) == 0 {
		return true
	}
	for _, pattern := range follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern reports whether a URL path matches a glob pattern.
// "/dir/*" matches everything below /dir at any depth and "*.ext" matches
// any path ending in .ext. Other patterns go through path.Match, and
// slash-free patterns are also tried against the last path element.
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}

	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}

	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}
