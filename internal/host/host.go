package host

import (
	"errors"
	"net/url"
	"strings"
)

// wwwPrefix is the label stripped from the front of a hostname.
const wwwPrefix = "www."

// ErrNoHost is returned when a URL does not carry a host component.
var ErrNoHost = errors.New("url has no host")

// Normalize lowercases h and strips one leading "www." label.
// A port suffix, if present, is removed as well.
func Normalize(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if hostname, _, ok := splitPort(h); ok {
		h = hostname
	}
	return strings.TrimPrefix(h, wwwPrefix)
}

// SameOrigin reports whether a and b normalize to the same host.
func SameOrigin(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Of parses rawURL and returns its normalized host.
func Of(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return OfURL(u)
}

// OfURL returns the normalized host of an already parsed URL.
func OfURL(u *url.URL) (string, error) {
	h := u.Hostname()
	if h == "" {
		return "", ErrNoHost
	}
	return Normalize(h), nil
}

// Matches reports whether rawURL belongs to origin. Unparseable URLs and
// URLs without a host never match.
func Matches(origin, rawURL string) bool {
	h, err := Of(rawURL)
	if err != nil {
		return false
	}
	return h == Normalize(origin)
}

// splitPort separates "host:port". IPv6 literals in brackets are unwrapped.
func splitPort(h string) (string, string, bool) {
	if strings.HasPrefix(h, "[") {
		end := strings.Index(h, "]")
		if end < 0 {
			return "", "", false
		}
		rest := h[end+1:]
		return h[1:end], strings.TrimPrefix(rest, ":"), true
	}
	i := strings.LastIndex(h, ":")
	if i < 0 || strings.Count(h, ":") > 1 {
		return "", "", false
	}
	return h[:i], h[i+1:], true
}
