// Package ledger keeps the ordered record of resources captured during a
// mirror job.
//
// The ledger is keyed by original URL and remembers insertion order; the
// download and rewrite passes walk it first-discovered, first-processed.
// A Ledger is owned by one session goroutine at a time and is not safe for
// concurrent use.
package ledger

import (
	"fmt"
	"iter"
	"time"

	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/mimetype"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/naming"
	"github.com/nao1215/sitemirror/internal/ordered"
)

// Ledger is the discovery ledger of one mirror job.
type Ledger struct {
	origin  string
	namer   *naming.Namer
	entries *ordered.Map[string, *model.Entry]
	now     func() time.Time
}

// New creates an empty ledger that accepts resources of origin and names
// them with namer.
func New(origin string, namer *naming.Namer) *Ledger {
	return &Ledger{
		origin:  host.Normalize(origin),
		namer:   namer,
		entries: ordered.NewMap[string, *model.Entry](),
		now:     time.Now,
	}
}

// Origin returns the normalized origin host.
func (l *Ledger) Origin() string {
	return l.origin
}

// Record inserts the resource captured at rawURL with the given
// Content-Type header value.
//
// It returns (nil, nil) when rawURL is already recorded or belongs to
// another origin; first capture wins. A naming failure is returned as an
// error and nothing is inserted.
func (l *Ledger) Record(rawURL, contentType string) (*model.Entry, error) {
	if l.entries.Has(rawURL) {
		return nil, nil
	}
	if !host.Matches(l.origin, rawURL) {
		return nil, nil
	}

	mime := mimetype.Normalize(contentType)
	name, err := l.namer.Name(rawURL, mime)
	if err != nil {
		return nil, fmt.Errorf("failed to name %s: %w", rawURL, err)
	}

	entry := &model.Entry{
		OriginalURL:  rawURL,
		Mime:         mime,
		Extension:    name.Extension,
		LocalPath:    name.LocalPath,
		Replace:      name.Replace,
		DiscoveredAt: l.now(),
	}
	l.entries.Store(rawURL, entry)
	return entry, nil
}

// Get returns the entry recorded for rawURL.
func (l *Ledger) Get(rawURL string) (*model.Entry, bool) {
	return l.entries.Get(rawURL)
}

// MarkDownloaded sets the downloaded flag. It reports whether rawURL is
// recorded; calling it twice is harmless.
func (l *Ledger) MarkDownloaded(rawURL string) bool {
	e, ok := l.entries.Get(rawURL)
	if ok {
		e.Downloaded = true
	}
	return ok
}

// MarkReplaced sets the replaced flag. It reports whether rawURL is
// recorded; calling it twice is harmless.
func (l *Ledger) MarkReplaced(rawURL string) bool {
	e, ok := l.entries.Get(rawURL)
	if ok {
		e.Replaced = true
	}
	return ok
}

// Len returns the number of recorded resources.
func (l *Ledger) Len() int {
	return l.entries.Len()
}

// All iterates entries in discovery order. The yielded entries are live;
// mutating them mutates the ledger.
func (l *Ledger) All() iter.Seq2[string, *model.Entry] {
	return l.entries.All()
}

// Snapshot returns copies of all entries in discovery order.
func (l *Ledger) Snapshot() []model.Entry {
	out := make([]model.Entry, 0, l.entries.Len())
	for _, e := range l.entries.All() {
		out = append(out, *e)
	}
	return out
}

// Clear drops every entry.
func (l *Ledger) Clear() {
	l.entries.Clear()
}
