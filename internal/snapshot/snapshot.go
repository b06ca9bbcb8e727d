// Package snapshot saves the rendered markup of visited pages.
//
// A snapshot lands in <root>/<host>/tmp/<url dirs>/<title>_<unixMillis>.scrp
// and starts with two comment lines recording the page URL and its
// original title. Pages without a title (blank or error pages) are not
// saved. With Markdown enabled a readable .md rendition is written next
// to each snapshot.
package snapshot

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/naming"
	"github.com/nao1215/sitemirror/internal/renderer"
)

const (
	// Extension is the snapshot file extension.
	Extension = ".scrp"

	// StagingDir is the per-host directory holding snapshots.
	StagingDir = "tmp"

	// maxTitleLength is the rune limit of the title part of a filename.
	maxTitleLength = 100

	// unknownHost replaces the host of URLs without one.
	unknownHost = "unknown-host"
)

// unsafeTitle matches characters that cannot appear in a filename.
var unsafeTitle = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Snapshotter writes DOM snapshots below a download root.
type Snapshotter struct {
	fs        afero.Fs
	root      string
	now       func() time.Time
	markdown  bool
	converter *converter.Converter
	logger    *slog.Logger
}

// Option configures a Snapshotter.
type Option func(*Snapshotter)

// WithClock replaces the clock used for the timestamp in filenames.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshotter) {
		s.now = now
	}
}

// WithMarkdown enables the Markdown companion file.
func WithMarkdown(enabled bool) Option {
	return func(s *Snapshotter) {
		s.markdown = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Snapshotter) {
		s.logger = logger
	}
}

// New creates a Snapshotter writing to fs under root.
func New(fs afero.Fs, root string, opts ...Option) *Snapshotter {
	s := &Snapshotter{
		fs:     fs,
		root:   root,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.markdown {
		s.converter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		)
	}
	return s
}

// Save writes doc and returns the snapshot path. An untitled document is
// skipped and yields an empty path and no error.
func (s *Snapshotter) Save(doc renderer.Document) (string, error) {
	if doc.Title == "" {
		return "", nil
	}

	dir := s.dir(doc.URL)
	if err := s.fs.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	name := SanitizeTitle(doc.Title) + "_" + strconv.FormatInt(s.now().UnixMilli(), 10)
	path := filepath.Join(dir, name+Extension)

	content := fmt.Sprintf("<!-- URL: %s -->\n<!-- TITLE: %s -->\n%s", doc.URL, doc.Title, doc.HTML)
	if err := afero.WriteFile(s.fs, path, []byte(content), 0600); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	if s.converter != nil {
		s.writeMarkdown(filepath.Join(dir, name+".md"), doc)
	}
	return path, nil
}

// writeMarkdown writes the Markdown rendition. Failures only get logged;
// the snapshot itself is already on disk.
func (s *Snapshotter) writeMarkdown(path string, doc renderer.Document) {
	md, err := s.converter.ConvertString(doc.HTML, converter.WithDomain(doc.URL))
	if err != nil {
		s.logger.Warn("failed to convert snapshot to markdown", "url", doc.URL, "error", err)
		return
	}
	if err := afero.WriteFile(s.fs, path, []byte(md), 0600); err != nil {
		s.logger.Warn("failed to write markdown snapshot", "path", path, "error", err)
	}
}

// dir returns the staging directory for a page URL.
func (s *Snapshotter) dir(pageURL string) string {
	h := unknownHost
	var dirs []string
	if u, err := url.Parse(pageURL); err == nil {
		if normalized, err := host.OfURL(u); err == nil {
			h = normalized
		}
		segments := naming.PathSegments(u)
		if len(segments) > 0 {
			dirs = segments[:len(segments)-1]
		}
	}
	parts := append([]string{s.root, h, StagingDir}, dirs...)
	return filepath.Join(parts...)
}

// SanitizeTitle makes a page title usable as a filename: path-illegal and
// control characters become "_" and the result is cut to 100 runes.
func SanitizeTitle(title string) string {
	safe := unsafeTitle.ReplaceAllString(norm.NFC.String(title), "_")
	if utf8.RuneCountInString(safe) <= maxTitleLength {
		return safe
	}
	runes := []rune(safe)
	return string(runes[:maxTitleLength])
}
