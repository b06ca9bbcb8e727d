package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/afero"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/event"
)

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.client = client
	}
}

// WithFs sets the filesystem snapshots and downloads are written to.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) {
		s.fs = fs
	}
}

// WithEmitter sets the receiver of progress events.
func WithEmitter(e event.Emitter) Option {
	return func(s *Session) {
		s.emitter = e
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithStore sets where finished job reports are saved.
func WithStore(store Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock sets the time source of job reports.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithDownloadRoot sets the default download root of jobs.
func WithDownloadRoot(root string) Option {
	return func(s *Session) {
		s.downloadRoot = root
	}
}

// WithUserAgent sets the default user agent of jobs.
func WithUserAgent(ua string) Option {
	return func(s *Session) {
		s.userAgent = ua
	}
}

// WithSnapshotMarkdown writes a Markdown companion next to each snapshot.
func WithSnapshotMarkdown(enabled bool) Option {
	return func(s *Session) {
		s.markdown = enabled
	}
}

// WithLinkPatterns sets the frontier's ignore and follow path patterns.
func WithLinkPatterns(ignore, follow []string) Option {
	return func(s *Session) {
		s.ignorePatterns = ignore
		s.followPatterns = follow
	}
}

// WithCrawlerOptions appends options for the crawl driver.
func WithCrawlerOptions(opts ...crawler.Option) Option {
	return func(s *Session) {
		s.crawlOpts = append(s.crawlOpts, opts...)
	}
}

// WithDownloadOptions appends options for the download executor.
func WithDownloadOptions(opts ...download.Option) Option {
	return func(s *Session) {
		s.downloadOpts = append(s.downloadOpts, opts...)
	}
}
