package frontier

import (
	"net/url"
	"strings"

	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/ordered"
)

// Frontier is the link frontier of one mirror job. It is owned by the
// crawl driver and is not safe for concurrent use.
type Frontier struct {
	// origin is the normalized host links must belong to.
	origin string

	// links maps each accepted URL to its scanned flag.
	links *ordered.Map[string, bool]

	// scanned counts links whose flag is true.
	scanned int

	// ignorePatterns reject matching paths.
	ignorePatterns []string

	// followPatterns, when set, restrict links to matching paths.
	followPatterns []string
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithIgnorePatterns sets path patterns whose links are never accepted.
func WithIgnorePatterns(patterns []string) Option {
	return func(f *Frontier) {
		f.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts accepted links to matching paths.
func WithFollowPatterns(patterns []string) Option {
	return func(f *Frontier) {
		f.followPatterns = patterns
	}
}

// New creates an empty frontier for origin.
func New(origin string, opts ...Option) *Frontier {
	f := &Frontier{
		origin: host.Normalize(origin),
		links:  ordered.NewMap[string, bool](),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Offer adds every acceptable candidate as pending and returns how many
// were new.
func (f *Frontier) Offer(candidates []string) int {
	added := 0
	for _, c := range candidates {
		if !f.accept(c) {
			continue
		}
		if f.links.StoreIfAbsent(c, false) {
			added++
		}
	}
	return added
}

// accept applies the acceptance rules to one candidate.
func (f *Frontier) accept(candidate string) bool {
	if candidate == "" || strings.Contains(candidate, "#") {
		return false
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	h, err := host.OfURL(u)
	if err != nil || h != f.origin {
		return false
	}
	return allowedPath(u.Path, f.ignorePatterns, f.followPatterns)
}

// NextPending returns the earliest offered link that has not been
// scanned. It keeps returning the same link until MarkScanned is called.
func (f *Frontier) NextPending() (string, bool) {
	for u, scanned := range f.links.All() {
		if !scanned {
			return u, true
		}
	}
	return "", false
}

// MarkScanned flips the link to visited. It reports whether the link is
// known; marking twice has no further effect.
func (f *Frontier) MarkScanned(u string) bool {
	scanned, ok := f.links.Get(u)
	if !ok {
		return false
	}
	if !scanned {
		f.links.Store(u, true)
		f.scanned++
	}
	return true
}

// IsScanned reports whether u is known and visited.
func (f *Frontier) IsScanned(u string) bool {
	scanned, _ := f.links.Get(u)
	return scanned
}

// Len returns the number of known links.
func (f *Frontier) Len() int {
	return f.links.Len()
}

// ScannedCount returns the number of visited links.
func (f *Frontier) ScannedCount() int {
	return f.scanned
}

// PendingCount returns the number of links not visited yet.
func (f *Frontier) PendingCount() int {
	return f.links.Len() - f.scanned
}

// Clear forgets every link.
func (f *Frontier) Clear() {
	f.links.Clear()
	f.scanned = 0
}
