package renderer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/mimetype"
)

// DefaultMaxBodySize bounds how much of a page or stylesheet Static reads
// for parsing.
const DefaultMaxBodySize = 10 * 1024 * 1024

var (
	// cssURLPattern matches url(...) references in stylesheets.
	cssURLPattern = regexp.MustCompile(`url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)

	// cssImportPattern matches @import "..." references.
	cssImportPattern = regexp.MustCompile(`@import\s+['"]([^'"]+)['"]`)
)

// subresourceSelectors lists the attributes a browser would fetch.
var subresourceSelectors = []struct {
	selector string
	attr     string
	srcset   bool
}{
	{selector: "link[href]", attr: "href"},
	{selector: "script[src]", attr: "src"},
	{selector: "img[src]", attr: "src"},
	{selector: "img[srcset]", attr: "srcset", srcset: true},
	{selector: "source[src]", attr: "src"},
	{selector: "source[srcset]", attr: "srcset", srcset: true},
	{selector: "video[src]", attr: "src"},
	{selector: "video[poster]", attr: "poster"},
	{selector: "audio[src]", attr: "src"},
	{selector: "iframe[src]", attr: "src"},
	{selector: "embed[src]", attr: "src"},
	{selector: "object[data]", attr: "data"},
	{selector: "input[type=image][src]", attr: "src"},
}

// fetchableRels are the link relations that make a browser load the href.
var fetchableRels = map[string]bool{
	"stylesheet":       true,
	"icon":             true,
	"shortcut":         true,
	"apple-touch-icon": true,
	"preload":          true,
	"modulepreload":    true,
	"manifest":         true,
	"mask-icon":        true,
}

// StaticOption configures a Static renderer.
type StaticOption func(*Static)

// WithStaticLogger sets the logger.
func WithStaticLogger(logger *slog.Logger) StaticOption {
	return func(s *Static) {
		s.logger = logger
	}
}

// WithStaticUserAgent sets the initial User-Agent.
func WithStaticUserAgent(ua string) StaticOption {
	return func(s *Static) {
		s.userAgent = ua
	}
}

// WithStaticMaxBodySize bounds how much markup or CSS is parsed.
func WithStaticMaxBodySize(n int64) StaticOption {
	return func(s *Static) {
		s.maxBodySize = n
	}
}

// Static renders pages without a browser. It fetches each page over HTTP,
// parses it, and requests the same-host subresources the markup and its
// stylesheets reference. Every subresource is requested at most once per
// renderer. AutoScroll does nothing.
type Static struct {
	client      *http.Client
	logger      *slog.Logger
	maxBodySize int64
	stream      *stream

	mu        sync.Mutex
	userAgent string
	fetched   map[string]bool
	doc       *goquery.Document
	current   Document
}

// NewStatic creates a static renderer using client for all requests.
func NewStatic(client *http.Client, opts ...StaticOption) *Static {
	s := &Static{
		client:      client,
		logger:      slog.Default(),
		maxBodySize: DefaultMaxBodySize,
		stream:      newStream(defaultBuffer),
		fetched:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Navigate implements Renderer. HTTP error statuses still load: the error
// page becomes the current document, as it would in a browser.
func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	if !s.stream.enter() {
		return ErrClosed
	}
	defer s.stream.leave()

	body, final, err := s.fetch(ctx, rawURL, true)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", final, err)
	}
	base := final
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := final.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	s.mu.Lock()
	s.doc = doc
	s.current = Document{
		URL:   final.String(),
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		HTML:  string(body),
	}
	s.mu.Unlock()

	for _, ref := range subresources(doc, base) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !host.SameOrigin(ref.Hostname(), final.Hostname()) {
			continue
		}
		s.load(ctx, ref.String())
	}
	return nil
}

// load requests one subresource unless it was requested before. Failures
// are logged; a browser would not abort the page for them either.
func (s *Static) load(ctx context.Context, rawURL string) {
	s.mu.Lock()
	if s.fetched[rawURL] {
		s.mu.Unlock()
		return
	}
	s.fetched[rawURL] = true
	s.mu.Unlock()

	body, final, err := s.fetch(ctx, rawURL, false)
	if err != nil {
		s.logger.Debug("subresource request failed", "url", rawURL, "error", err)
		return
	}
	if body == nil {
		return
	}
	for _, ref := range cssReferences(string(body), final) {
		if host.SameOrigin(ref.Hostname(), final.Hostname()) {
			s.load(ctx, ref.String())
		}
	}
}

// fetch performs a GET, reports the response on the network stream and
// returns the body when it is markup (page == true) or a stylesheet.
func (s *Static) fetch(ctx context.Context, rawURL string, page bool) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	ua := s.userAgent
	s.mu.Unlock()
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	final := resp.Request.URL
	keep := page || mimetype.Normalize(resp.Header.Get("Content-Type")) == "text/css"

	var body []byte
	if keep {
		body, err = io.ReadAll(io.LimitReader(resp.Body, s.maxBodySize))
	} else {
		_, err = io.Copy(io.Discard, resp.Body)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", rawURL, err)
	}

	s.stream.send(ctx, NetworkEvent{
		URL:        final.String(),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
	})
	return body, final, nil
}

// subresources lists absolute http(s) URLs referenced by doc.
func subresources(doc *goquery.Document, base *url.URL) []*url.URL {
	var refs []*url.URL
	seen := make(map[string]bool)
	add := func(raw string) {
		u, ok := resolve(base, raw)
		if !ok || seen[u.String()] {
			return
		}
		seen[u.String()] = true
		refs = append(refs, u)
	}

	for _, sel := range subresourceSelectors {
		doc.Find(sel.selector).Each(func(_ int, el *goquery.Selection) {
			if sel.selector == "link[href]" && !fetchableLink(el) {
				return
			}
			val, _ := el.Attr(sel.attr)
			if sel.srcset {
				for _, candidate := range parseSrcset(val) {
					add(candidate)
				}
				return
			}
			add(val)
		})
	}

	doc.Find("style").Each(func(_ int, el *goquery.Selection) {
		for _, u := range cssReferences(el.Text(), base) {
			add(u.String())
		}
	})
	doc.Find("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		for _, u := range cssReferences(style, base) {
			add(u.String())
		}
	})
	return refs
}

// fetchableLink reports whether a <link> element makes a browser load its href.
func fetchableLink(el *goquery.Selection) bool {
	rel, _ := el.Attr("rel")
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if fetchableRels[r] {
			return true
		}
	}
	return false
}

// cssReferences lists url() and @import targets in css resolved against base.
func cssReferences(css string, base *url.URL) []*url.URL {
	var refs []*url.URL
	for _, pattern := range []*regexp.Regexp{cssURLPattern, cssImportPattern} {
		for _, m := range pattern.FindAllStringSubmatch(css, -1) {
			if u, ok := resolve(base, m[1]); ok {
				refs = append(refs, u)
			}
		}
	}
	return refs
}

// parseSrcset returns the URLs of a srcset attribute.
func parseSrcset(srcset string) []string {
	var out []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			out = append(out, fields[0])
		}
	}
	return out
}

// resolve makes raw absolute against base and drops the fragment. Only
// http and https results are returned.
func resolve(base *url.URL, raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return nil, false
	}
	u, err := base.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u, true
}

// Network implements Renderer.
func (s *Static) Network() <-chan NetworkEvent {
	return s.stream.ch
}

// Anchors implements Renderer. Hrefs are resolved against the document
// URL (or its <base>), like HTMLAnchorElement.href.
func (s *Static) Anchors(_ context.Context) ([]string, error) {
	if s.stream.isClosed() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}

	base, err := url.Parse(s.current.URL)
	if err != nil {
		return nil, err
	}
	if href, ok := s.doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var anchors []string
	s.doc.Find("a[href]").Each(func(_ int, el *goquery.Selection) {
		href, _ := el.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		anchors = append(anchors, u.String())
	})
	return anchors, nil
}

// AutoScroll implements Renderer. Without a layout engine there is
// nothing to scroll.
func (s *Static) AutoScroll(_ context.Context) error {
	if s.stream.isClosed() {
		return ErrClosed
	}
	return nil
}

// Document implements Renderer.
func (s *Static) Document(_ context.Context) (Document, error) {
	if s.stream.isClosed() {
		return Document{}, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return Document{}, ErrNoDocument
	}
	return s.current, nil
}

// SetUserAgent implements Renderer.
func (s *Static) SetUserAgent(ua string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ua != "" {
		s.userAgent = ua
	}
	return nil
}

// Close implements Renderer. It is safe to call more than once.
func (s *Static) Close() error {
	s.stream.shutdown()
	return nil
}
