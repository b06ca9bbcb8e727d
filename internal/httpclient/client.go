package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second

	// maxRedirects bounds redirect chains.
	maxRedirects = 10
)

// Options configures the HTTP client.
type Options struct {
	// Proxy is an optional proxy URL (socks5://, http:// or https://).
	Proxy string

	// Timeout is the per-request timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// Cookie is a raw Cookie header value added to every request.
	Cookie string

	// UserAgent overrides the Go default user agent when set.
	UserAgent string

	// Headers are extra request headers.
	Headers map[string]string

	// InsecureSkipVerify disables TLS certificate verification.
	// Mirrors of staging sites with self-signed certificates need it.
	InsecureSkipVerify bool
}

// New creates an HTTP client from opts.
func New(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in for self-signed staging sites
		}
	}
	if opts.Proxy != "" {
		if err := applyProxy(transport, opts.Proxy); err != nil {
			return nil, err
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || opts.UserAgent != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:      transport,
			cookie:    opts.Cookie,
			userAgent: opts.UserAgent,
			headers:   opts.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// applyProxy configures transport to route through rawProxy.
func applyProxy(transport *http.Transport, rawProxy string) error {
	u, err := url.Parse(rawProxy)
	if err != nil || !isValidProxyAddress(u.Host) {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, rawProxy)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return nil
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
}

// isValidProxyAddress reports whether address is host:port with a port in
// the range 1-65535.
func isValidProxyAddress(address string) bool {
	h, port, err := net.SplitHostPort(address)
	if err != nil || h == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured cookie, user agent and
// headers to every request.
type headerInjectingTransport struct {
	base      http.RoundTripper
	cookie    string
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
