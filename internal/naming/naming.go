package naming

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/mimetype"
)

const (
	// maxQueryLength caps the query fragment embedded in a filename.
	maxQueryLength = 100

	// defaultHTMLBase names markup served from a directory URL.
	defaultHTMLBase = "index"

	// defaultFileBase names other resources served from a directory URL.
	defaultFileBase = "file"
)

// ErrInvalidURL is returned when the captured URL cannot be parsed.
var ErrInvalidURL = errors.New("invalid resource url")

var (
	// htmlQueryUnsafe matches characters not allowed in a markup query fragment.
	htmlQueryUnsafe = regexp.MustCompile(`[^A-Za-z0-9_=&-]`)

	// pairUnsafe matches characters not allowed in a key-value fragment.
	pairUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
)

// Name is the computed destination of one resource.
type Name struct {
	// Host is the normalized host segment of the local path.
	Host string

	// FileName is the last element of LocalPath.
	FileName string

	// LocalPath is the absolute destination under the download root.
	LocalPath string

	// Extension is the extension resolved from the content type.
	// It may differ from the extension of FileName.
	Extension string

	// Replace is true when FileName differs from the URL basename.
	Replace bool
}

// Namer computes local paths below a fixed download root.
type Namer struct {
	root string
}

// New returns a Namer rooted at downloadRoot.
func New(downloadRoot string) *Namer {
	return &Namer{root: downloadRoot}
}

// Root returns the download root.
func (n *Namer) Root() string {
	return n.root
}

// Name computes the destination for rawURL served with the given content
// type. mime may carry parameters; they are ignored.
func (n *Namer) Name(rawURL, mime string) (Name, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	h, err := host.OfURL(u)
	if err != nil {
		return Name{}, err
	}

	mime = mimetype.Normalize(mime)
	ext := mimetype.Extension(mime)

	segments := PathSegments(u)
	base := ""
	if len(segments) > 0 {
		base = segments[len(segments)-1]
		segments = segments[:len(segments)-1]
	}

	var fileName string
	var replace bool
	if mimetype.IsHTML(mime) {
		fileName, replace = htmlFileName(base, u.RawQuery, ext)
	} else {
		fileName, replace = resourceFileName(base, u.RawQuery, ext)
	}

	parts := append([]string{n.root, h}, segments...)
	parts = append(parts, fileName)

	return Name{
		Host:      h,
		FileName:  fileName,
		LocalPath: filepath.Join(parts...),
		Extension: ext,
		Replace:   replace,
	}, nil
}

// htmlFileName names a markup resource.
func htmlFileName(base, rawQuery, ext string) (string, bool) {
	if base == "" {
		base = defaultHTMLBase
	}
	if rawQuery != "" {
		return base + "_" + sanitizeHTMLQuery(rawQuery) + "." + ext, true
	}
	if Extname(base) == "" {
		return base + "." + ext, true
	}
	return base, false
}

// resourceFileName names anything that is not markup.
func resourceFileName(base, rawQuery, ext string) (string, bool) {
	baseExt := Extname(base)
	if rawQuery != "" {
		stem := strings.TrimSuffix(base, baseExt)
		if stem == "" {
			stem = defaultFileBase
		}
		fileExt := ext
		if baseExt != "" {
			fileExt = baseExt[1:]
		}
		return stem + "_" + sanitizePairs(rawQuery) + "." + fileExt, true
	}
	if baseExt != "" {
		return base, false
	}
	if base == "" {
		base = defaultFileBase
	}
	return base + "." + ext, true
}

// sanitizeHTMLQuery turns "?a=1&b=x y" into "a=1&b=x_y".
func sanitizeHTMLQuery(rawQuery string) string {
	s := htmlQueryUnsafe.ReplaceAllString("?"+rawQuery, "_")
	s = strings.TrimLeft(s, "_")
	return truncate(s, maxQueryLength)
}

// sanitizePairs turns "v=2&lang=en" into "v-2-lang-en".
func sanitizePairs(rawQuery string) string {
	pairs := QueryPairs(rawQuery)
	joined := make([]string, 0, len(pairs))
	for _, p := range pairs {
		joined = append(joined, p[0]+"-"+p[1])
	}
	s := pairUnsafe.ReplaceAllString(strings.Join(joined, "-"), "_")
	return truncate(s, maxQueryLength)
}

// QueryPairs decodes rawQuery into key/value pairs in order of first
// appearance. Repeated keys are merged with their values joined by ",".
func QueryPairs(rawQuery string) [][2]string {
	var pairs [][2]string
	position := make(map[string]int)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		k = unescape(k)
		v = unescape(v)
		if i, ok := position[k]; ok {
			pairs[i][1] += "," + v
			continue
		}
		position[k] = len(pairs)
		pairs = append(pairs, [2]string{k, v})
	}
	return pairs
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// PathSegments splits the escaped URL path into non-empty segments.
// "." and ".." are dropped so a resource can never escape its host
// directory.
func PathSegments(u *url.URL) []string {
	var out []string
	for _, s := range strings.Split(u.EscapedPath(), "/") {
		if s == "" || s == "." || s == ".." {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Basename returns the last segment of the URL path, or "" for a
// directory-only path.
func Basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := PathSegments(u)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Extname returns the extension of a filename including the leading dot.
// Dotfiles such as ".htaccess" and names ending in a bare dot have no
// extension.
func Extname(name string) string {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}
