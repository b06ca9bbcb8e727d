// Package httpclient builds the HTTP client used for static rendering and
// resource downloads.
//
// The client can route through a SOCKS5 or HTTP proxy, keeps cookies in a
// public-suffix aware jar, and injects a configured cookie, user agent and
// extra headers into every request including redirects.
package httpclient
