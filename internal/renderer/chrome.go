package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Default scroll behaviour of AutoScroll.
const (
	DefaultScrollStep     = 100
	DefaultScrollInterval = 400 * time.Millisecond
	DefaultScrollMaxSteps = 1000
)

// ChromeOptions configures NewChrome.
type ChromeOptions struct {
	// ControlURL connects to an already running browser instead of
	// launching one.
	ControlURL string

	// Bin is the browser binary. Empty lets the launcher find or download one.
	Bin string

	// Headless runs the launched browser without a window.
	Headless bool

	// Stealth applies go-rod/stealth evasions to the page.
	Stealth bool

	// Proxy is passed to the browser as --proxy-server.
	Proxy string

	// UserAgent overrides the browser's User-Agent when set.
	UserAgent string

	// Headers are sent with every request the page makes.
	Headers map[string]string

	// ScrollStep, ScrollInterval and ScrollMaxSteps tune AutoScroll.
	ScrollStep     int
	ScrollInterval time.Duration
	ScrollMaxSteps int

	// Logger receives renderer diagnostics.
	Logger *slog.Logger
}

// DefaultChromeOptions returns headless stealth options.
func DefaultChromeOptions() ChromeOptions {
	return ChromeOptions{
		Headless:       true,
		Stealth:        true,
		ScrollStep:     DefaultScrollStep,
		ScrollInterval: DefaultScrollInterval,
		ScrollMaxSteps: DefaultScrollMaxSteps,
	}
}

// Chrome renders pages in a Chromium browser over the DevTools protocol.
type Chrome struct {
	opts     ChromeOptions
	logger   *slog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	stream   *stream

	// cancel stops the event listener goroutine.
	cancel context.CancelFunc

	// responses holds responses waiting for their loading-finished event.
	// Only the listener goroutine touches it.
	responses map[proto.NetworkRequestID]NetworkEvent

	closeOnce sync.Once
	closeErr  error
}

// NewChrome launches (or connects to) a browser, opens one page and
// starts listening for network events.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ScrollStep <= 0 {
		opts.ScrollStep = DefaultScrollStep
	}
	if opts.ScrollInterval <= 0 {
		opts.ScrollInterval = DefaultScrollInterval
	}
	if opts.ScrollMaxSteps <= 0 {
		opts.ScrollMaxSteps = DefaultScrollMaxSteps
	}

	c := &Chrome{
		opts:      opts,
		logger:    opts.Logger,
		stream:    newStream(defaultBuffer),
		responses: make(map[proto.NetworkRequestID]NetworkEvent),
	}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(opts.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.Proxy != "" {
			l = l.Proxy(opts.Proxy)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
		c.launcher = l
		c.logger.Debug("launched local browser", "controlURL", controlURL)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		c.cleanupLauncher()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	c.browser = b

	if err := b.IgnoreCertErrors(true); err != nil {
		c.logger.Warn("failed to ignore certificate errors", "error", err)
	}

	var page *rod.Page
	var err error
	if opts.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close() //nolint:errcheck // best effort cleanup
		c.cleanupLauncher()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	c.page = page

	if err := c.setup(); err != nil {
		_ = c.Close() //nolint:errcheck // best effort cleanup
		return nil, err
	}
	return c, nil
}

// setup enables the network domain and starts the listener.
func (c *Chrome) setup() error {
	if err := (proto.NetworkEnable{}).Call(c.page); err != nil {
		return fmt.Errorf("failed to enable network events: %w", err)
	}
	if c.opts.UserAgent != "" {
		if err := c.SetUserAgent(c.opts.UserAgent); err != nil {
			return err
		}
	}
	if len(c.opts.Headers) > 0 {
		dict := make([]string, 0, len(c.opts.Headers)*2)
		for k, v := range c.opts.Headers {
			dict = append(dict, k, v)
		}
		if _, err := c.page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("failed to set extra headers: %w", err)
		}
	}

	if !c.stream.enter() {
		return ErrClosed
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	wait := c.page.Context(listenCtx).EachEvent(
		func(e *proto.NetworkResponseReceived) {
			if e.Response == nil {
				return
			}
			c.responses[e.RequestID] = NetworkEvent{
				URL:        e.Response.URL,
				StatusCode: e.Response.Status,
				Headers:    toHeader(e.Response.Headers, e.Response.MIMEType),
			}
		},
		func(e *proto.NetworkLoadingFinished) {
			ev, ok := c.responses[e.RequestID]
			if !ok {
				return
			}
			delete(c.responses, e.RequestID)
			c.stream.send(listenCtx, ev)
		},
		func(e *proto.NetworkLoadingFailed) {
			delete(c.responses, e.RequestID)
		},
	)
	go func() {
		defer c.stream.leave()
		wait()
	}()
	return nil
}

// toHeader converts DevTools headers. The reported MIME type fills in a
// missing Content-Type.
func toHeader(h proto.NetworkHeaders, mimeType string) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		// several values arrive joined by newlines
		for _, part := range strings.Split(v.Str(), "\n") {
			out.Add(k, part)
		}
	}
	if out.Get("Content-Type") == "" && mimeType != "" {
		out.Set("Content-Type", mimeType)
	}
	return out
}

// Navigate implements Renderer.
func (c *Chrome) Navigate(ctx context.Context, rawURL string) error {
	if c.stream.isClosed() {
		return ErrClosed
	}
	p := c.page.Context(ctx)
	if err := p.Navigate(rawURL); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", rawURL, err)
	}
	return nil
}

// Network implements Renderer.
func (c *Chrome) Network() <-chan NetworkEvent {
	return c.stream.ch
}

// Anchors implements Renderer.
func (c *Chrome) Anchors(ctx context.Context) ([]string, error) {
	if c.stream.isClosed() {
		return nil, ErrClosed
	}
	res, err := c.page.Context(ctx).Eval(anchorsScript)
	if err != nil {
		return nil, fmt.Errorf("failed to extract anchors: %w", err)
	}
	values := res.Value.Arr()
	anchors := make([]string, 0, len(values))
	for _, v := range values {
		if href := v.Str(); href != "" {
			anchors = append(anchors, href)
		}
	}
	return anchors, nil
}

// AutoScroll implements Renderer.
func (c *Chrome) AutoScroll(ctx context.Context) error {
	if c.stream.isClosed() {
		return ErrClosed
	}
	_, err := c.page.Context(ctx).Eval(scrollScript,
		c.opts.ScrollStep,
		c.opts.ScrollInterval.Milliseconds(),
		c.opts.ScrollMaxSteps,
	)
	if err != nil {
		return fmt.Errorf("failed to scroll page: %w", err)
	}
	return nil
}

// Document implements Renderer.
func (c *Chrome) Document(ctx context.Context) (Document, error) {
	if c.stream.isClosed() {
		return Document{}, ErrClosed
	}
	res, err := c.page.Context(ctx).Eval(documentScript)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}
	return Document{
		URL:   res.Value.Get("url").Str(),
		Title: strings.TrimSpace(res.Value.Get("title").Str()),
		HTML:  res.Value.Get("html").Str(),
	}, nil
}

// SetUserAgent implements Renderer.
func (c *Chrome) SetUserAgent(ua string) error {
	if ua == "" {
		return nil
	}
	if err := c.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}
	return nil
}

// Close implements Renderer. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.stream.shutdown()
		if c.page != nil {
			if err := c.page.Close(); err != nil {
				c.logger.Debug("failed to close page", "error", err)
			}
		}
		if c.browser != nil {
			c.closeErr = c.browser.Close()
		}
		c.cleanupLauncher()
	})
	return c.closeErr
}

func (c *Chrome) cleanupLauncher() {
	if c.launcher != nil {
		c.launcher.Cleanup()
		c.launcher = nil
	}
}
