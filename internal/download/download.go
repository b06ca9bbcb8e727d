// Package download fetches every captured resource of a mirror job to its
// local path.
//
// Downloads run one at a time in discovery order. A failed resource (a
// network error or a status of 400 or above) has its partial file removed
// and is still marked downloaded; nothing is retried within a job.
package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/time/rate"

	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/ledger"
	"github.com/nao1215/sitemirror/internal/model"
)

// ErrHTTPStatus is returned for responses with a status of 400 or above.
var ErrHTTPStatus = errors.New("unexpected HTTP status")

// Metrics receives one observation per download attempt.
type Metrics interface {
	ObserveDownload(ok bool, bytes int64, elapsed time.Duration)
}

// Summary counts the outcome of one download pass.
type Summary struct {
	Attempted int
	Failed    int
	Bytes     int64
}

// Executor downloads ledger entries.
type Executor struct {
	client    *http.Client
	fs        afero.Fs
	emitter   event.Emitter
	metrics   Metrics
	logger    *slog.Logger
	limiter   *rate.Limiter
	userAgent string
}

// Option configures an Executor.
type Option func(*Executor)

// WithEmitter sets the progress event receiver.
func WithEmitter(e event.Emitter) Option {
	return func(x *Executor) {
		x.emitter = e
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(x *Executor) {
		x.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Executor) {
		x.logger = logger
	}
}

// WithRate limits downloads to perSecond requests per second.
// Zero or less means unlimited.
func WithRate(perSecond float64) Option {
	return func(x *Executor) {
		if perSecond > 0 {
			x.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			x.limiter = nil
		}
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(x *Executor) {
		x.userAgent = ua
	}
}

// New creates an Executor fetching with client and writing to fs.
func New(client *http.Client, fs afero.Fs, opts ...Option) *Executor {
	x := &Executor{
		client:  client,
		fs:      fs,
		emitter: event.Discard,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run downloads every entry of l that is not downloaded yet. It only
// returns an error when ctx is done; per-resource failures are recorded
// on the entry and reported as error events.
func (x *Executor) Run(ctx context.Context, l *ledger.Ledger) (Summary, error) {
	var summary Summary
	x.emitter.Emit(event.Event{Channel: event.Downloading, Params: event.FileCount{FileCount: l.Len()}})

	for rawURL, entry := range l.All() {
		if entry.Downloaded {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("download interrupted: %w", err)
		}

		summary.Attempted++
		start := time.Now()
		err := x.fetch(ctx, entry)
		l.MarkDownloaded(rawURL)

		ref := event.FileRef{URL: rawURL}
		if err != nil {
			summary.Failed++
			entry.Error = err.Error()
			x.logger.Warn("failed to download resource", "url", rawURL, "path", entry.LocalPath, "error", err)
			x.emitter.Emit(event.NewFailure(event.StageDownload, rawURL, err))
		} else {
			summary.Bytes += entry.Size
			ref.LocalPath = entry.LocalPath
			x.logger.Debug("downloaded resource", "url", rawURL, "path", entry.LocalPath, "size", entry.Size)
		}
		if x.metrics != nil {
			x.metrics.ObserveDownload(err == nil, entry.Size, time.Since(start))
		}
		x.emitter.Emit(event.Event{Channel: event.DownloadFile, Params: ref})
	}

	x.emitter.Emit(event.Event{Channel: event.Downloaded, Params: event.FileCount{FileCount: l.Len()}})
	return summary, nil
}

// fetch streams one resource to its local path and records status, size
// and hash on the entry. On failure nothing is left at the local path.
func (x *Executor) fetch(ctx context.Context, entry *model.Entry) error {
	if x.limiter != nil {
		if err := x.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, entry.OriginalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if x.userAgent != "" {
		req.Header.Set("User-Agent", x.userAgent)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	entry.StatusCode = resp.StatusCode
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	if err := x.fs.MkdirAll(filepath.Dir(entry.LocalPath), 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	size, hash, err := x.write(entry.LocalPath, resp.Body)
	if err != nil {
		if rmErr := x.fs.Remove(entry.LocalPath); rmErr != nil && !errors.Is(rmErr, afero.ErrFileNotFound) {
			x.logger.Warn("failed to remove partial file", "path", entry.LocalPath, "error", rmErr)
		}
		return err
	}

	entry.Size = size
	entry.Hash = hash
	entry.Error = ""
	return nil
}

// write copies body to path and returns the byte count and hex digest.
func (x *Executor) write(path string, body io.Reader) (int64, string, error) {
	f, err := x.fs.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create file: %w", err)
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return 0, "", fmt.Errorf("failed to create hasher: %w", err)
	}

	n, copyErr := io.Copy(io.MultiWriter(f, hasher), body)
	closeErr := f.Close()
	if copyErr != nil {
		return n, "", fmt.Errorf("failed to write body: %w", copyErr)
	}
	if closeErr != nil {
		return n, "", fmt.Errorf("failed to close file: %w", closeErr)
	}
	return n, hex.EncodeToString(hasher.Sum(nil)), nil
}
