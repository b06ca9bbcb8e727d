package httpclient

import "errors"

var (
	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	// Accepted forms are socks5://host:port, http://host:port and
	// https://host:port.
	ErrInvalidProxy = errors.New("invalid proxy: expected socks5://, http:// or https:// with host:port")
)
