package renderer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const testPage = `<!doctype html>
<html>
<head>
  <title>  Home Page </title>
  <link rel="stylesheet" href="/style.css?v=2">
  <link rel="icon" href="/favicon.ico">
  <link rel="canonical" href="/canonical">
  <script src="/app.js"></script>
  <script src="https://cdn.other.test/lib.js"></script>
</head>
<body style="background: url('/bg.png')">
  <a href="/about">About</a>
  <a href="contact.html#form">Contact</a>
  <a href="https://other.test/">Elsewhere</a>
  <a>No href</a>
  <img src="/img/logo.png" srcset="/img/logo-2x.png 2x, /img/logo-3x.png 3x">
  <img src="data:image/gif;base64,R0lGOD">
</body>
</html>`

func newSite(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()

	var hits sync.Map
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		count, _ := hits.LoadOrStore(r.URL.Path, new(atomic.Int64))
		count.(*atomic.Int64).Add(1)
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(testPage))
		case "/style.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte(`@import "/base.css"; .x { background: url(../img/sprite.png); }`))
		case "/base.css":
			w.Header().Set("Content-Type", "text/css")
			_, _ = w.Write([]byte(`body { font-family: sans-serif; }`))
		case "/ua":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<title>" + r.UserAgent() + "</title>"))
		case "/missing":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<title>Not Found</title>"))
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte("x"))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

// drain collects network events until the renderer is closed.
func drain(r Renderer) <-chan []NetworkEvent {
	out := make(chan []NetworkEvent, 1)
	go func() {
		var events []NetworkEvent
		for ev := range r.Network() {
			events = append(events, ev)
		}
		out <- events
	}()
	return out
}

func TestStaticNavigate(t *testing.T) {
	t.Parallel()

	srv, hits := newSite(t)
	r := NewStatic(srv.Client())
	collected := drain(r)

	ctx := context.Background()
	if err := r.Navigate(ctx, srv.URL+"/"); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}

	doc, err := r.Document(ctx)
	if err != nil {
		t.Fatalf("document failed: %v", err)
	}
	if doc.Title != "Home Page" {
		t.Errorf("unexpected title %q", doc.Title)
	}
	if doc.URL != srv.URL+"/" || !strings.Contains(doc.HTML, "<a href=\"/about\">") {
		t.Errorf("unexpected document %q", doc.URL)
	}

	anchors, err := r.Anchors(ctx)
	if err != nil {
		t.Fatalf("anchors failed: %v", err)
	}
	wantAnchors := []string{srv.URL + "/about", srv.URL + "/contact.html#form", "https://other.test/"}
	if !slices.Equal(anchors, wantAnchors) {
		t.Errorf("anchors = %v, want %v", anchors, wantAnchors)
	}

	if err := r.AutoScroll(ctx); err != nil {
		t.Errorf("autoscroll failed: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	var urls []string
	for _, ev := range <-collected {
		urls = append(urls, strings.TrimPrefix(ev.URL, srv.URL))
		if ev.StatusCode != http.StatusOK {
			t.Errorf("unexpected status %d for %s", ev.StatusCode, ev.URL)
		}
	}
	sort.Strings(urls)
	want := []string{
		"/",
		"/app.js",
		"/base.css",
		"/bg.png",
		"/favicon.ico",
		"/img/logo-2x.png",
		"/img/logo-3x.png",
		"/img/logo.png",
		"/img/sprite.png",
		"/style.css?v=2",
	}
	if !slices.Equal(urls, want) {
		t.Errorf("network urls = %v\nwant %v", urls, want)
	}
	if _, ok := hits.Load("/canonical"); ok {
		t.Error("canonical link must not be fetched")
	}
}

func TestStaticFetchesSubresourcesOnce(t *testing.T) {
	t.Parallel()

	srv, hits := newSite(t)
	r := NewStatic(srv.Client())
	collected := drain(r)

	ctx := context.Background()
	for range 2 {
		if err := r.Navigate(ctx, srv.URL+"/"); err != nil {
			t.Fatalf("navigate failed: %v", err)
		}
	}
	_ = r.Close()
	<-collected

	page, _ := hits.Load("/")
	css, _ := hits.Load("/style.css")
	if n := page.(*atomic.Int64).Load(); n != 2 {
		t.Errorf("expected the page to load twice, got %d", n)
	}
	if n := css.(*atomic.Int64).Load(); n != 1 {
		t.Errorf("expected the stylesheet to load once, got %d", n)
	}
}

func TestStaticErrorPageStillLoads(t *testing.T) {
	t.Parallel()

	srv, _ := newSite(t)
	r := NewStatic(srv.Client())
	collected := drain(r)

	if err := r.Navigate(context.Background(), srv.URL+"/missing"); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	doc, _ := r.Document(context.Background())
	if doc.Title != "Not Found" {
		t.Errorf("unexpected title %q", doc.Title)
	}
	_ = r.Close()
	events := <-collected
	if len(events) != 1 || events[0].StatusCode != http.StatusNotFound {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestStaticUserAgent(t *testing.T) {
	t.Parallel()

	srv, _ := newSite(t)
	r := NewStatic(srv.Client(), WithStaticUserAgent("first/1.0"))
	collected := drain(r)
	defer func() {
		_ = r.Close()
		<-collected
	}()

	if err := r.SetUserAgent("mirror-test/2.0"); err != nil {
		t.Fatalf("set user agent failed: %v", err)
	}
	if err := r.Navigate(context.Background(), srv.URL+"/ua"); err != nil {
		t.Fatalf("navigate failed: %v", err)
	}
	doc, _ := r.Document(context.Background())
	if doc.Title != "mirror-test/2.0" {
		t.Errorf("expected user agent in title, got %q", doc.Title)
	}
}

func TestStaticClosed(t *testing.T) {
	t.Parallel()

	r := NewStatic(http.DefaultClient)

	if _, err := r.Document(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("expected ErrNoDocument before navigation, got %v", err)
	}

	_ = r.Close()
	_ = r.Close()

	if err := r.Navigate(context.Background(), "http://127.0.0.1:1/"); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-r.Network(); ok {
		t.Error("expected network channel to be closed")
	}
}

func TestStaticNavigateFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	r := NewStatic(http.DefaultClient)
	defer r.Close()

	if err := r.Navigate(context.Background(), addr+"/"); err == nil {
		t.Error("expected navigation to a closed server to fail")
	}
}

func TestParseSrcset(t *testing.T) {
	t.Parallel()

	got := parseSrcset(" a.png 1x, b.png 2x ,, c.png")
	if !slices.Equal(got, []string{"a.png", "b.png", "c.png"}) {
		t.Errorf("unexpected srcset parse %v", got)
	}
}
