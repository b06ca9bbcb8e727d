package model

import "time"

// Entry is one captured same-origin resource and its local destination.
// The JSON field names are part of the addUrl event payload.
type Entry struct {
	// OriginalURL is the URL the resource was captured from. It is unique
	// within a mirror job.
	OriginalURL string `json:"originalUrl"`

	// Mime is the normalized content type (lowercase, no parameters).
	Mime string `json:"mime"`

	// Extension is the extension resolved from Mime. Never empty.
	Extension string `json:"extension"`

	// LocalPath is the absolute path the resource is downloaded to.
	LocalPath string `json:"localPath"`

	// Replace marks resources whose local filename differs from the URL
	// basename, so references to them have to be rewritten.
	Replace bool `json:"replace"`

	// Replaced is set once a rewrite pass has modified this resource's file.
	Replaced bool `json:"replaced"`

	// Downloaded is set once a download attempt finished, whatever the outcome.
	Downloaded bool `json:"downloaded"`

	// StatusCode is the HTTP status of the download attempt.
	StatusCode int `json:"statusCode,omitempty"`

	// Size is the number of bytes written to LocalPath.
	Size int64 `json:"size,omitempty"`

	// Hash is the hex BLAKE2b-256 digest of the downloaded bytes.
	Hash string `json:"hash,omitempty"`

	// Error describes why the download failed. Empty on success.
	Error string `json:"error,omitempty"`

	// DiscoveredAt is when the resource was first captured.
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Succeeded reports whether the resource was downloaded without error.
func (e *Entry) Succeeded() bool {
	return e.Downloaded && e.Error == ""
}

// PageVisit records one navigation performed by the crawl driver.
type PageVisit struct {
	// URL is the page that was navigated to.
	URL string `json:"url"`

	// VisitedAt is when navigation started.
	VisitedAt time.Time `json:"visitedAt"`

	// Attempts is the number of navigation attempts made.
	Attempts int `json:"attempts"`

	// Error is set when every attempt failed and the page was skipped.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the page was skipped.
func (p PageVisit) Failed() bool {
	return p.Error != ""
}
