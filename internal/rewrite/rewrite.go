// Package rewrite points references inside downloaded text assets at the
// renamed local copies of mirrored resources.
//
// The substitution is literal: every occurrence of an original basename in
// a markup, stylesheet or script file is replaced, whether or not it sits
// inside an attribute or url(). Unrelated text that happens to contain the
// same basename is rewritten too. Each file is rewritten in a single pass,
// so a replacement is never itself rewritten by a later rename.
package rewrite

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/ledger"
	"github.com/nao1215/sitemirror/internal/naming"
	"github.com/nao1215/sitemirror/internal/ordered"
)

// textMimes are the content types whose files are rewritten.
var textMimes = map[string]struct{}{
	"text/html":                {},
	"application/xhtml+xml":    {},
	"text/css":                 {},
	"application/javascript":   {},
	"text/javascript":          {},
	"application/x-javascript": {},
	"application/ecmascript":   {},
}

// IsText reports whether files of mime take part in rewriting.
func IsText(mime string) bool {
	_, ok := textMimes[mime]
	return ok
}

// Metrics receives one observation per rewritten file.
type Metrics interface {
	FileRewritten()
}

// Summary counts the outcome of one rewrite pass.
type Summary struct {
	// Renames is the size of the rename map.
	Renames int
	// Scanned is the number of text assets read.
	Scanned int
	// Rewritten is the number of files written back.
	Rewritten int
	// Failed is the number of assets that could not be read or written.
	Failed int
}

// Rewriter rewrites text assets of a ledger.
type Rewriter struct {
	fs      afero.Fs
	emitter event.Emitter
	metrics Metrics
	logger  *slog.Logger
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithEmitter sets the progress event receiver.
func WithEmitter(e event.Emitter) Option {
	return func(r *Rewriter) {
		r.emitter = e
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(r *Rewriter) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		r.logger = logger
	}
}

// New creates a Rewriter working on fs.
func New(fs afero.Fs, opts ...Option) *Rewriter {
	r := &Rewriter{
		fs:      fs,
		emitter: event.Discard,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenameMap maps the original basename of every renamed resource to its
// local filename, in discovery order. Empty names and identity renames
// are left out; when two resources share a basename the one discovered
// last wins.
func RenameMap(l *ledger.Ledger) *ordered.Map[string, string] {
	renames := ordered.NewMap[string, string]()
	for rawURL, entry := range l.All() {
		if !entry.Replace {
			continue
		}
		oldName := naming.Basename(rawURL)
		newName := filepath.Base(entry.LocalPath)
		if oldName == "" || oldName == newName {
			continue
		}
		renames.Store(oldName, newName)
	}
	return renames
}

// Apply replaces every old name in content with its new name and reports
// whether anything changed.
func Apply(content string, renames *ordered.Map[string, string]) (string, bool) {
	return apply(content, newReplacer(renames))
}

// newReplacer builds a single-pass replacer over renames. Text produced by
// one rename is never matched again by another, and where several old
// names start at the same position the longest one wins.
func newReplacer(renames *ordered.Map[string, string]) *strings.Replacer {
	pairs := make([][2]string, 0, renames.Len())
	for oldName, newName := range renames.All() {
		pairs = append(pairs, [2]string{oldName, newName})
	}
	slices.SortStableFunc(pairs, func(a, b [2]string) int {
		return cmp.Compare(len(b[0]), len(a[0]))
	})

	args := make([]string, 0, 2*len(pairs))
	for _, p := range pairs {
		args = append(args, p[0], p[1])
	}
	return strings.NewReplacer(args...)
}

func apply(content string, replacer *strings.Replacer) (string, bool) {
	out := replacer.Replace(content)
	return out, out != content
}

// Run rewrites every text asset of l. Assets that are missing or fail to
// read or write are skipped; the pass only returns an error when ctx is
// done.
func (r *Rewriter) Run(ctx context.Context, l *ledger.Ledger) (Summary, error) {
	renames := RenameMap(l)
	summary := Summary{Renames: renames.Len()}

	r.emitter.Emit(event.Event{Channel: event.Changing, Params: event.FileCount{FileCount: l.Len()}})
	defer r.emitter.Emit(event.Event{Channel: event.Changed, Params: event.FileCount{FileCount: l.Len()}})

	if renames.Len() == 0 {
		return summary, nil
	}
	replacer := newReplacer(renames)

	for rawURL, entry := range l.All() {
		if !IsText(entry.Mime) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("rewrite interrupted: %w", err)
		}

		changed, err := r.rewriteFile(entry.LocalPath, replacer)
		if err != nil {
			if errors.Is(err, afero.ErrFileNotFound) {
				r.logger.Warn("skipping missing asset", "url", rawURL, "path", entry.LocalPath)
				continue
			}
			summary.Failed++
			r.logger.Warn("failed to rewrite asset", "url", rawURL, "path", entry.LocalPath, "error", err)
			r.emitter.Emit(event.NewFailure(event.StageRewrite, rawURL, err))
			continue
		}
		summary.Scanned++
		if !changed {
			continue
		}

		summary.Rewritten++
		l.MarkReplaced(rawURL)
		if r.metrics != nil {
			r.metrics.FileRewritten()
		}
		r.emitter.Emit(event.Event{Channel: event.ReplacedFile, Params: event.FileRef{URL: rawURL}})
	}
	return summary, nil
}

// rewriteFile applies replacer to the file at path and writes it back when
// something changed.
func (r *Rewriter) rewriteFile(path string, replacer *strings.Replacer) (bool, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		return false, err
	}

	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to read asset: %w", err)
	}

	content, changed := apply(string(data), replacer)
	if !changed {
		return false, nil
	}
	if err := afero.WriteFile(r.fs, path, []byte(content), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write asset: %w", err)
	}
	return true, nil
}
