package mimetype

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// FallbackExtension is returned for unknown or extension-less types.
const FallbackExtension = "bin"

// HTML is the only content type treated as markup by the namer.
const HTML = "text/html"

//go:embed types.yaml
var rawTable []byte

var (
	tableOnce sync.Once
	table     map[string][]string
	tableErr  error
)

// loadTable parses the embedded table once.
func loadTable() (map[string][]string, error) {
	tableOnce.Do(func() {
		parsed := make(map[string][]string)
		if err := yaml.Unmarshal(rawTable, &parsed); err != nil {
			tableErr = fmt.Errorf("failed to parse mime table: %w", err)
			return
		}
		table = parsed
	})
	return table, tableErr
}

// Normalize strips parameters from a Content-Type header value and
// lowercases the remaining media type. "Text/HTML; charset=utf-8" becomes
// "text/html".
func Normalize(contentType string) string {
	mime, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mime))
}

// Extension returns the preferred extension for mime without a leading dot.
// Unknown types, empty candidate lists and a broken table all resolve to
// FallbackExtension.
func Extension(mime string) string {
	t, err := loadTable()
	if err != nil {
		return FallbackExtension
	}
	candidates := t[Normalize(mime)]
	if len(candidates) == 0 {
		return FallbackExtension
	}
	ext := strings.TrimPrefix(candidates[0], ".")
	if ext == "" {
		return FallbackExtension
	}
	return ext
}

// Known reports whether mime has an entry in the table.
func Known(mime string) bool {
	t, err := loadTable()
	if err != nil {
		return false
	}
	_, ok := t[Normalize(mime)]
	return ok
}

// IsHTML reports whether mime is exactly text/html after normalization.
func IsHTML(mime string) bool {
	return Normalize(mime) == HTML
}
