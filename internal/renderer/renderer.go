package renderer

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrClosed is returned by operations on a closed renderer.
var ErrClosed = errors.New("renderer is closed")

// ErrNoDocument is returned when the renderer has not loaded a page yet.
var ErrNoDocument = errors.New("no document loaded")

// NetworkEvent describes one completed network response.
type NetworkEvent struct {
	// URL is the final URL of the response.
	URL string

	// StatusCode is the HTTP status.
	StatusCode int

	// Headers are the response headers.
	Headers http.Header
}

// ContentType returns the raw Content-Type header value.
func (e NetworkEvent) ContentType() string {
	return e.Headers.Get("Content-Type")
}

// Document is the rendered state of the current page.
type Document struct {
	// URL is the address of the loaded page after redirects.
	URL string

	// Title is the document title, trimmed.
	Title string

	// HTML is the full outer HTML of the document element.
	HTML string
}

// Renderer is a page renderer the crawl driver can steer.
// Navigate, Anchors, AutoScroll and Document are called from one
// goroutine; Network may be consumed from another.
type Renderer interface {
	// Navigate loads rawURL and returns once its content is ready.
	Navigate(ctx context.Context, rawURL string) error

	// Network returns the stream of completed responses.
	Network() <-chan NetworkEvent

	// Anchors returns the absolute href of every anchor in the document.
	Anchors(ctx context.Context) ([]string, error)

	// AutoScroll scrolls to the bottom of the page so lazy content loads.
	AutoScroll(ctx context.Context) error

	// Document returns the current URL, title and outer HTML.
	Document(ctx context.Context) (Document, error)

	// SetUserAgent changes the User-Agent of subsequent requests.
	SetUserAgent(ua string) error

	// Close releases the renderer and closes the Network channel.
	Close() error
}

// defaultBuffer is the capacity of the network event channel.
const defaultBuffer = 256

// stream owns the network channel shared by producers. Producers register
// with enter/leave; shutdown waits for them before closing the channel so
// a send never races a close.
type stream struct {
	ch     chan NetworkEvent
	done   chan struct{}
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func newStream(buffer int) *stream {
	if buffer < 0 {
		buffer = 0
	}
	return &stream{
		ch:   make(chan NetworkEvent, buffer),
		done: make(chan struct{}),
	}
}

// enter registers a producer. It returns false once shutdown started.
func (s *stream) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// leave unregisters a producer.
func (s *stream) leave() {
	s.wg.Done()
}

// send delivers ev unless the stream or ctx is done first.
func (s *stream) send(ctx context.Context, ev NetworkEvent) bool {
	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// shutdown stops accepting producers, waits for running ones and closes
// the channel. Only the first call has an effect; it reports whether it
// was that call.
func (s *stream) shutdown() bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	close(s.ch)
	return true
}

// isClosed reports whether shutdown has started.
func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
