package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and can be checked with
// errors.Is().
var (
	// ErrInvalidURL is returned when the seed URL is missing or is not an
	// absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL: provide an absolute http or https URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxPages is returned when the page cap is negative.
	// Use 0 for no cap.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidRetries is returned when the navigation retry count is negative.
	ErrInvalidRetries = errors.New("invalid navigation retries: must be non-negative")

	// ErrInvalidRate is returned when the download rate is negative.
	// Use 0 for unlimited.
	ErrInvalidRate = errors.New("invalid download rate: must be non-negative")

	// ErrInvalidDelay is returned when one of the crawl delays is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrUnknownRenderer is returned when the renderer is neither chrome
	// nor static.
	ErrUnknownRenderer = errors.New("unknown renderer: use chrome or static")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when --tor and --proxy are both set.
	ErrConflictingProxy = errors.New("conflicting proxies: --tor and --proxy cannot be used together")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnknownSystemDir is returned for a system directory name that is
	// not supported.
	ErrUnknownSystemDir = errors.New("unknown system directory")
)
