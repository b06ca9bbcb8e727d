package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/frontier"
	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/ledger"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/naming"
	"github.com/nao1215/sitemirror/internal/pipeline"
	"github.com/nao1215/sitemirror/internal/renderer"
	"github.com/nao1215/sitemirror/internal/rewrite"
	"github.com/nao1215/sitemirror/internal/snapshot"
)

var (
	// ErrInvalidSeed is returned when the seed URL is not an absolute
	// http(s) URL with a host.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrNotRunning is returned by Wait when no job was started.
	ErrNotRunning = errors.New("no mirror job is running")
)

// Pipeline step names.
const (
	StepCrawl    = "crawl"
	StepDownload = "download"
	StepRewrite  = "rewrite"
	StepFinalize = "finalize"
	StepPersist  = "persist"
)

// RendererFactory creates the renderer of one job.
type RendererFactory func(ctx context.Context) (renderer.Renderer, error)

// Store saves finished job reports.
type Store interface {
	SaveReport(ctx context.Context, report *model.MirrorReport) (int64, error)
}

// Metrics receives measurements from every phase of a job.
type Metrics interface {
	crawler.Metrics
	download.Metrics
	rewrite.Metrics
	ResourceDiscovered()
}

// Job describes one mirror job.
type Job struct {
	// Seed is the URL the crawl starts from.
	Seed string `json:"url"`

	// DownloadRoot overrides the session's default download root.
	DownloadRoot string `json:"downloadPath,omitempty"`

	// UserAgent overrides the session's user agent for this job.
	UserAgent string `json:"userAgent,omitempty"`
}

// Session coordinates the crawl, download and rewrite phases of a mirror
// job. At most one job is active at a time.
type Session struct {
	newRenderer RendererFactory
	client      *http.Client
	fs          afero.Fs
	emitter     event.Emitter
	metrics     Metrics
	store       Store
	logger      *slog.Logger
	now         func() time.Time

	downloadRoot   string
	userAgent      string
	markdown       bool
	ignorePatterns []string
	followPatterns []string
	crawlOpts      []crawler.Option
	downloadOpts   []download.Option

	mu       sync.Mutex
	origin   string
	ledger   *ledger.Ledger
	frontier *frontier.Frontier
	renderer renderer.Renderer
	cancel   context.CancelFunc
	done     chan struct{}
	report   *model.MirrorReport
	err      error
}

// New creates a Session that renders pages with renderers made by
// newRenderer.
func New(newRenderer RendererFactory, opts ...Option) *Session {
	s := &Session{
		newRenderer: newRenderer,
		client:      http.DefaultClient,
		fs:          afero.NewOsFs(),
		emitter:     event.Discard,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Origin returns the normalized origin host of the current job, or an
// empty string when the session is idle.
func (s *Session) Origin() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.origin
}

// DownloadRoot returns the default download root.
func (s *Session) DownloadRoot() string {
	return s.downloadRoot
}

// Running reports whether a job started with Start is still active.
func (s *Session) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// LedgerLen returns the number of captured resources of the current job.
// It must not be called while a job is running.
func (s *Session) LedgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return 0
	}
	return s.ledger.Len()
}

// FrontierLen returns the number of known links of the current job.
// It must not be called while a job is running.
func (s *Session) FrontierLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frontier == nil {
		return 0
	}
	return s.frontier.Len()
}

// SetUserAgent changes the user agent of later jobs and of the renderer
// of the running job, if any.
func (s *Session) SetUserAgent(ua string) error {
	s.mu.Lock()
	s.userAgent = ua
	r := s.renderer
	s.mu.Unlock()

	if r == nil {
		return nil
	}
	if err := r.SetUserAgent(ua); err != nil && !errors.Is(err, renderer.ErrClosed) {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	return nil
}

// Start launches job in the background. A job that is still running is
// stopped first. The returned error only reports an invalid seed.
func (s *Session) Start(ctx context.Context, job Job) error {
	if _, _, err := ParseSeed(job.Seed); err != nil {
		return err
	}
	if s.Running() {
		s.Stop()
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.report = nil
	s.err = nil
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		report, err := s.Run(ctx, job)

		s.mu.Lock()
		s.report = report
		s.err = err
		s.mu.Unlock()
	}()
	return nil
}

// Wait blocks until the job started with Start finishes and returns its
// report.
func (s *Session) Wait() (*model.MirrorReport, error) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil, ErrNotRunning
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report, s.err
}

// Stop cancels the running job, waits for it to wind down, clears the
// ledger and frontier, resets the origin and emits a stop event. Stop is
// safe to call when nothing is running.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	if s.ledger != nil {
		s.ledger.Clear()
	}
	if s.frontier != nil {
		s.frontier.Clear()
	}
	s.origin = ""
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("mirror session stopped")
	s.emitter.Emit(event.Event{Channel: event.Stop, Params: event.Empty{}})
}

// ParseSeed validates rawSeed and returns the trimmed seed and its
// normalized origin host.
func ParseSeed(rawSeed string) (string, string, error) {
	seed := strings.TrimSpace(rawSeed)
	u, err := url.Parse(seed)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: scheme must be http or https: %q", ErrInvalidSeed, seed)
	}
	origin := host.Normalize(u.Hostname())
	if origin == "" {
		return "", "", fmt.Errorf("%w: missing host: %q", ErrInvalidSeed, seed)
	}
	return seed, origin, nil
}

// jobState is the value threaded through the job pipeline.
type jobState struct {
	seed     string
	root     string
	ua       string
	ledger   *ledger.Ledger
	frontier *frontier.Frontier
	report   *model.MirrorReport
	err      error
}

// fail remembers the first phase error for the report.
func (j *jobState) fail(err error) error {
	if err != nil && j.err == nil {
		j.err = err
	}
	return err
}

// Run executes job synchronously and returns its report. The report is
// returned even when the job was cancelled or a phase failed; Stopped or
// Error tell what happened.
func (s *Session) Run(ctx context.Context, job Job) (*model.MirrorReport, error) {
	seed, origin, err := ParseSeed(job.Seed)
	if err != nil {
		return nil, err
	}

	root := strings.TrimSpace(job.DownloadRoot)
	if root == "" {
		root = s.downloadRoot
	}
	ua := job.UserAgent
	if ua == "" {
		s.mu.Lock()
		ua = s.userAgent
		s.mu.Unlock()
	}

	j := &jobState{
		seed:   seed,
		root:   root,
		ua:     ua,
		ledger: ledger.New(origin, naming.New(root)),
		frontier: frontier.New(origin,
			frontier.WithIgnorePatterns(s.ignorePatterns),
			frontier.WithFollowPatterns(s.followPatterns),
		),
		report: model.NewMirrorReport(origin, seed, filepath.Join(root, origin)),
	}
	j.report.StartedAt = s.now()

	s.mu.Lock()
	s.origin = origin
	s.ledger = j.ledger
	s.frontier = j.frontier
	s.mu.Unlock()

	s.logger.Info("starting mirror job", "url", seed, "host", origin, "root", root)

	p := pipeline.New[*jobState](
		pipeline.WithLogger(s.logger),
		pipeline.WithAlways(StepFinalize, StepPersist),
	)
	p.AddSteps(
		pipeline.NewStep(StepCrawl, s.crawl),
		pipeline.NewStep(StepDownload, s.download),
		pipeline.NewStep(StepRewrite, s.rewrite),
		pipeline.NewStep(StepFinalize, s.finalize),
		pipeline.NewStep(StepPersist, s.persist),
	)

	err = p.Execute(ctx, j)
	s.logger.Info("mirror job finished",
		"host", origin,
		"status", j.report.Status(),
		"resources", len(j.report.Entries),
		"duration", j.report.Duration(),
	)
	return j.report, err
}

// crawl runs the crawl driver and the capture loop side by side. The
// driver closes the renderer when it is done, which ends the network
// stream and lets the capture loop drain the remaining events.
func (s *Session) crawl(ctx context.Context, j *jobState) error {
	r, err := s.newRenderer(ctx)
	if err != nil {
		return j.fail(fmt.Errorf("failed to create renderer: %w", err))
	}
	if j.ua != "" {
		if err := r.SetUserAgent(j.ua); err != nil {
			s.logger.Warn("failed to set user agent", "error", err)
		}
	}

	s.mu.Lock()
	s.renderer = r
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.renderer = nil
		s.mu.Unlock()
	}()

	opts := []crawler.Option{
		crawler.WithSnapshotter(snapshot.New(s.fs, j.root,
			snapshot.WithMarkdown(s.markdown),
			snapshot.WithLogger(s.logger),
		)),
		crawler.WithEmitter(s.emitter),
		crawler.WithLogger(s.logger),
	}
	if s.metrics != nil {
		opts = append(opts, crawler.WithMetrics(s.metrics))
	}
	driver := crawler.NewDriver(r, j.frontier, append(opts, s.crawlOpts...)...)

	var result *crawler.Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.capture(r.Network(), j.ledger)
		return nil
	})
	g.Go(func() error {
		defer func() {
			if err := r.Close(); err != nil {
				s.logger.Warn("failed to close renderer", "error", err)
			}
		}()
		var err error
		result, err = driver.Run(gctx, j.seed)
		return err
	})
	err = g.Wait()

	if result != nil {
		j.report.Pages = result.Pages
		j.report.Snapshots = result.Snapshots
	}
	return j.fail(err)
}

// capture records every network event into l until the stream closes.
func (s *Session) capture(network <-chan renderer.NetworkEvent, l *ledger.Ledger) {
	for ev := range network {
		entry, err := l.Record(ev.URL, ev.ContentType())
		if err != nil {
			s.logger.Warn("failed to record resource", "url", ev.URL, "error", err)
			s.emitter.Emit(event.NewFailure(event.StageCapture, ev.URL, err))
			continue
		}
		if entry == nil {
			s.logger.Debug("ignored network event", "url", ev.URL)
			continue
		}
		if s.metrics != nil {
			s.metrics.ResourceDiscovered()
		}
		s.emitter.Emit(event.NewAddURL(*entry))
	}
}

func (s *Session) download(ctx context.Context, j *jobState) error {
	opts := []download.Option{
		download.WithEmitter(s.emitter),
		download.WithLogger(s.logger),
		download.WithUserAgent(j.ua),
	}
	if s.metrics != nil {
		opts = append(opts, download.WithMetrics(s.metrics))
	}
	x := download.New(s.client, s.fs, append(opts, s.downloadOpts...)...)

	summary, err := x.Run(ctx, j.ledger)
	s.logger.Info("download pass finished",
		"attempted", summary.Attempted,
		"failed", summary.Failed,
		"bytes", summary.Bytes,
	)
	return j.fail(err)
}

func (s *Session) rewrite(ctx context.Context, j *jobState) error {
	opts := []rewrite.Option{
		rewrite.WithEmitter(s.emitter),
		rewrite.WithLogger(s.logger),
	}
	if s.metrics != nil {
		opts = append(opts, rewrite.WithMetrics(s.metrics))
	}

	summary, err := rewrite.New(s.fs, opts...).Run(ctx, j.ledger)
	s.logger.Info("rewrite pass finished",
		"renames", summary.Renames,
		"rewritten", summary.Rewritten,
		"failed", summary.Failed,
	)
	return j.fail(err)
}

// finalize completes the report. It runs after cancellation too.
func (s *Session) finalize(ctx context.Context, j *jobState) error {
	j.report.FinishedAt = s.now()
	j.report.Entries = j.ledger.Snapshot()

	switch {
	case ctx.Err() != nil:
		j.report.Stopped = true
	case j.err != nil:
		j.report.Error = j.err.Error()
	}
	return nil
}

// persist saves the report when a store is configured. Cancellation of
// the job does not cancel the save.
func (s *Session) persist(ctx context.Context, j *jobState) error {
	if s.store == nil {
		return nil
	}

	id, err := s.store.SaveReport(context.WithoutCancel(ctx), j.report)
	if err != nil {
		s.logger.Warn("failed to save job report", "host", j.report.Host, "error", err)
		s.emitter.Emit(event.NewFailure(event.StagePersist, j.seed, err))
		return fmt.Errorf("failed to save job report: %w", err)
	}
	s.logger.Debug("saved job report", "id", id)
	return nil
}
