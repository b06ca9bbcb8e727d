package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/frontier"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/renderer"
)

// State is a crawl driver state.
type State int32

const (
	// Idle means Run has not been called.
	Idle State = iota
	// Starting means the seed page is loading.
	Starting
	// Visiting means the driver is walking pending links.
	Visiting
	// Draining means the frontier is exhausted and trailing network
	// events are settling.
	Draining
	// Finished means traversal is over.
	Finished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Visiting:
		return "visiting"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Default timings.
const (
	DefaultSettleDelay  = 200 * time.Millisecond
	DefaultFinishDelay  = 300 * time.Millisecond
	DefaultRetryBackoff = time.Second
	DefaultNavRetries   = 2
)

// Snapshotter saves the rendered document of the current page.
type Snapshotter interface {
	Save(doc renderer.Document) (string, error)
}

// Metrics receives traversal measurements.
type Metrics interface {
	PageVisited()
	NavigationFailed()
	SnapshotSaved()
	FrontierPending(n int)
}

// Result summarizes one traversal.
type Result struct {
	// Pages lists every navigation in visit order, seed first.
	Pages []model.PageVisit

	// Snapshots lists the snapshot files written.
	Snapshots []string
}

// Driver walks the same-origin link graph of a site with a renderer.
// Navigation, anchor extraction, scrolling and snapshotting happen
// strictly one after another; only the renderer's network stream runs
// concurrently, and the driver never reads it.
type Driver struct {
	renderer    renderer.Renderer
	frontier    *frontier.Frontier
	snapshots   Snapshotter
	emitter     event.Emitter
	metrics     Metrics
	logger      *slog.Logger
	settleDelay time.Duration
	finishDelay time.Duration
	backoff     time.Duration
	navRetries  int
	maxPages    int
	state       atomic.Int32
}

// Option configures a Driver.
type Option func(*Driver)

// WithSnapshotter sets where page snapshots go. Without one no snapshots
// are taken.
func WithSnapshotter(s Snapshotter) Option {
	return func(d *Driver) {
		d.snapshots = s
	}
}

// WithEmitter sets the progress event receiver.
func WithEmitter(e event.Emitter) Option {
	return func(d *Driver) {
		d.emitter = e
	}
}

// WithMetrics sets the metrics receiver.
func WithMetrics(m Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithSettleDelay sets the pause before snapshotting and leaving a page.
func WithSettleDelay(delay time.Duration) Option {
	return func(d *Driver) {
		d.settleDelay = delay
	}
}

// WithFinishDelay sets the pause after the frontier is exhausted.
func WithFinishDelay(delay time.Duration) Option {
	return func(d *Driver) {
		d.finishDelay = delay
	}
}

// WithNavigationRetries sets how many times a failed navigation is
// retried before the page is skipped.
func WithNavigationRetries(n int) Option {
	return func(d *Driver) {
		d.navRetries = max(n, 0)
	}
}

// WithRetryBackoff sets the pause between navigation attempts.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(d *Driver) {
		d.backoff = backoff
	}
}

// WithMaxPages caps the number of visited pages, seed included.
// Zero means no cap.
func WithMaxPages(n int) Option {
	return func(d *Driver) {
		d.maxPages = max(n, 0)
	}
}

// NewDriver creates a Driver steering r and tracking links in f.
func NewDriver(r renderer.Renderer, f *frontier.Frontier, opts ...Option) *Driver {
	d := &Driver{
		renderer:    r,
		frontier:    f,
		emitter:     event.Discard,
		logger:      slog.Default(),
		settleDelay: DefaultSettleDelay,
		finishDelay: DefaultFinishDelay,
		backoff:     DefaultRetryBackoff,
		navRetries:  DefaultNavRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current state. It is safe to call from any goroutine.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	d.state.Store(int32(s))
	d.logger.Debug("crawl state", "state", s.String())
}

// Run visits seed and then every pending link until the frontier is
// exhausted or the page cap is reached. Navigation failures are retried
// and then skipped; only context cancellation ends Run early.
func (d *Driver) Run(ctx context.Context, seed string) (*Result, error) {
	result := &Result{}

	d.setState(Starting)
	if d.visit(ctx, seed, result) {
		d.process(ctx)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.setState(Visiting)
	for {
		next, ok := d.frontier.NextPending()
		if !ok || d.capped(result) {
			break
		}

		d.frontier.MarkScanned(next)
		if err := sleep(ctx, d.settleDelay); err != nil {
			return result, err
		}
		d.snapshot(ctx, result)

		loaded := d.visit(ctx, next, result)
		if err := ctx.Err(); err != nil {
			return result, err
		}
		d.emitter.Emit(event.Event{
			Channel: event.LoadedURL,
			Params: event.Progress{
				URLSize:      d.frontier.Len(),
				ScannedCount: d.frontier.ScannedCount(),
				PendingCount: d.frontier.PendingCount(),
				URL:          next,
			},
		})
		if d.metrics != nil {
			d.metrics.FrontierPending(d.frontier.PendingCount())
		}
		if loaded {
			d.process(ctx)
		}
	}

	d.setState(Draining)
	d.snapshot(ctx, result)
	d.emitter.Emit(event.Event{
		Channel: event.Scanned,
		Params:  event.ScanSummary{ScannedSize: d.frontier.Len()},
	})
	if err := sleep(ctx, d.finishDelay); err != nil {
		return result, err
	}

	d.setState(Finished)
	return result, nil
}

// capped reports whether the page cap has been reached.
func (d *Driver) capped(result *Result) bool {
	return d.maxPages > 0 && len(result.Pages) >= d.maxPages
}

// visit navigates to rawURL with bounded retries and records the visit.
// It reports whether the page loaded.
func (d *Driver) visit(ctx context.Context, rawURL string, result *Result) bool {
	visit := model.PageVisit{URL: rawURL, VisitedAt: time.Now()}

	var err error
	for attempt := 0; attempt <= d.navRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := sleep(ctx, d.backoff); sleepErr != nil {
				err = sleepErr
				break
			}
		}
		visit.Attempts++
		if err = d.renderer.Navigate(ctx, rawURL); err == nil {
			break
		}
		if ctx.Err() != nil || errors.Is(err, renderer.ErrClosed) {
			break
		}
		d.logger.Debug("navigation attempt failed", "url", rawURL, "attempt", visit.Attempts, "error", err)
	}

	if err != nil {
		visit.Error = err.Error()
		result.Pages = append(result.Pages, visit)
		if ctx.Err() == nil {
			d.logger.Warn("skipping page after failed navigation", "url", rawURL, "attempts", visit.Attempts, "error", err)
			d.emitter.Emit(event.NewFailure(event.StageNavigate, rawURL, err))
			if d.metrics != nil {
				d.metrics.NavigationFailed()
			}
		}
		return false
	}

	result.Pages = append(result.Pages, visit)
	if d.metrics != nil {
		d.metrics.PageVisited()
	}
	return true
}

// process handles a page whose content is ready: anchors go to the
// frontier, then the page is scrolled so lazy resources load.
func (d *Driver) process(ctx context.Context) {
	anchors, err := d.renderer.Anchors(ctx)
	if err != nil {
		d.logger.Warn("failed to extract anchors", "error", err)
	} else {
		added := d.frontier.Offer(anchors)
		d.logger.Debug("anchors offered", "found", len(anchors), "added", added)
	}

	if err := d.renderer.AutoScroll(ctx); err != nil {
		d.logger.Warn("failed to scroll page", "error", err)
	}
}

// snapshot saves the current document. Failures are logged and reported
// but never stop the crawl.
func (d *Driver) snapshot(ctx context.Context, result *Result) {
	if d.snapshots == nil || ctx.Err() != nil {
		return
	}

	doc, err := d.renderer.Document(ctx)
	if err != nil {
		if !errors.Is(err, renderer.ErrNoDocument) {
			d.logger.Warn("failed to read document", "error", err)
		}
		return
	}

	path, err := d.snapshots.Save(doc)
	if err != nil {
		d.logger.Warn("failed to save snapshot", "url", doc.URL, "error", err)
		d.emitter.Emit(event.NewFailure(event.StageSnapshot, doc.URL, err))
		return
	}
	if path == "" {
		return
	}
	result.Snapshots = append(result.Snapshots, path)
	if d.metrics != nil {
		d.metrics.SnapshotSaved()
	}
}

// sleep pauses for delay or until ctx is done.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("crawl interrupted: %w", ctx.Err())
	}
}
