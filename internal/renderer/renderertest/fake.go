// Package renderertest provides an in-memory renderer for tests.
package renderertest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/nao1215/sitemirror/internal/renderer"
)

// ErrNotFound is returned when navigating to a URL the fake does not know.
var ErrNotFound = errors.New("page not found")

// Resource is a network response reported when a page loads.
type Resource struct {
	URL         string
	ContentType string
	StatusCode  int
}

// Page describes one page of the fake site.
type Page struct {
	Title     string
	HTML      string
	Anchors   []string
	Resources []Resource

	// Failures makes the first N navigations to this page fail.
	Failures int
}

// Fake is a scripted renderer. Every navigation reports the page itself
// as a text/html response followed by its resources.
type Fake struct {
	mu         sync.Mutex
	pages      map[string]*Page
	current    string
	closed     bool
	network    chan renderer.NetworkEvent
	navigated  []string
	scrolls    int
	userAgents []string
}

var _ renderer.Renderer = (*Fake)(nil)

// New creates a Fake serving pages keyed by URL.
func New(pages map[string]Page) *Fake {
	f := &Fake{
		pages:   make(map[string]*Page, len(pages)),
		network: make(chan renderer.NetworkEvent, 1024),
	}
	for u, p := range pages {
		f.pages[u] = &p
	}
	return f
}

// Navigate implements renderer.Renderer.
func (f *Fake) Navigate(ctx context.Context, rawURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return renderer.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.navigated = append(f.navigated, rawURL)

	page, ok := f.pages[rawURL]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if page.Failures > 0 {
		page.Failures--
		return fmt.Errorf("navigation to %s failed", rawURL)
	}

	f.current = rawURL
	f.network <- event(rawURL, "text/html; charset=utf-8", http.StatusOK)
	for _, r := range page.Resources {
		status := r.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		f.network <- event(r.URL, r.ContentType, status)
	}
	return nil
}

func event(rawURL, contentType string, status int) renderer.NetworkEvent {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return renderer.NetworkEvent{URL: rawURL, StatusCode: status, Headers: h}
}

// Network implements renderer.Renderer.
func (f *Fake) Network() <-chan renderer.NetworkEvent {
	return f.network
}

// Anchors implements renderer.Renderer.
func (f *Fake) Anchors(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		return nil, renderer.ErrNoDocument
	}
	return append([]string(nil), f.pages[f.current].Anchors...), nil
}

// AutoScroll implements renderer.Renderer.
func (f *Fake) AutoScroll(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls++
	return nil
}

// Document implements renderer.Renderer.
func (f *Fake) Document(_ context.Context) (renderer.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		return renderer.Document{}, renderer.ErrNoDocument
	}
	p := f.pages[f.current]
	return renderer.Document{URL: f.current, Title: p.Title, HTML: p.HTML}, nil
}

// SetUserAgent implements renderer.Renderer.
func (f *Fake) SetUserAgent(ua string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userAgents = append(f.userAgents, ua)
	return nil
}

// Close implements renderer.Renderer.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.network)
	}
	return nil
}

// Navigated returns every URL passed to Navigate, in order.
func (f *Fake) Navigated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...)
}

// Scrolls returns how many times AutoScroll was called.
func (f *Fake) Scrolls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scrolls
}

// UserAgents returns the user agents set so far.
func (f *Fake) UserAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.userAgents...)
}
