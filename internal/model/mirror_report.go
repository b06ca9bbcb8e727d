package model

import "time"

// MirrorReport summarizes one mirror job. It is what gets printed at the
// end of a run and what the history database stores.
type MirrorReport struct {
	// ID is the database identifier. Zero until the report is saved.
	ID int64 `json:"id,omitempty"`

	// Host is the normalized origin host.
	Host string `json:"host"`

	// SeedURL is the URL the job started from.
	SeedURL string `json:"seedUrl"`

	// DownloadRoot is the directory resources were written under.
	DownloadRoot string `json:"downloadRoot"`

	// StartedAt and FinishedAt bracket the whole job.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Pages lists every navigation in visiting order.
	Pages []PageVisit `json:"pages"`

	// Snapshots lists the snapshot files written during the crawl.
	Snapshots []string `json:"snapshots"`

	// Entries is the ledger in discovery order.
	Entries []Entry `json:"entries"`

	// Stopped is true when the job was stopped before it finished.
	Stopped bool `json:"stopped"`

	// Error holds a job-level failure message.
	Error string `json:"error,omitempty"`
}

// NewMirrorReport creates an empty report for a job starting now.
func NewMirrorReport(host, seedURL, downloadRoot string) *MirrorReport {
	return &MirrorReport{
		Host:         host,
		SeedURL:      seedURL,
		DownloadRoot: downloadRoot,
		StartedAt:    time.Now(),
		Pages:        make([]PageVisit, 0),
		Snapshots:    make([]string, 0),
		Entries:      make([]Entry, 0),
	}
}

// Duration returns how long the job ran. It is zero while the job runs.
func (r *MirrorReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// VisitedCount returns the number of pages navigated successfully.
func (r *MirrorReport) VisitedCount() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Failed() {
			n++
		}
	}
	return n
}

// FailedPageCount returns the number of pages skipped after retries.
func (r *MirrorReport) FailedPageCount() int {
	return len(r.Pages) - r.VisitedCount()
}

// DownloadedCount returns the number of resources downloaded successfully.
func (r *MirrorReport) DownloadedCount() int {
	n := 0
	for i := range r.Entries {
		if r.Entries[i].Succeeded() {
			n++
		}
	}
	return n
}

// FailedCount returns the number of resources whose download failed.
func (r *MirrorReport) FailedCount() int {
	n := 0
	for i := range r.Entries {
		if r.Entries[i].Downloaded && r.Entries[i].Error != "" {
			n++
		}
	}
	return n
}

// RenamedCount returns the number of resources stored under a new name.
func (r *MirrorReport) RenamedCount() int {
	n := 0
	for i := range r.Entries {
		if r.Entries[i].Replace {
			n++
		}
	}
	return n
}

// RewrittenCount returns the number of assets modified by the rewrite pass.
func (r *MirrorReport) RewrittenCount() int {
	n := 0
	for i := range r.Entries {
		if r.Entries[i].Replaced {
			n++
		}
	}
	return n
}

// TotalBytes returns the sum of downloaded bytes.
func (r *MirrorReport) TotalBytes() int64 {
	var n int64
	for i := range r.Entries {
		n += r.Entries[i].Size
	}
	return n
}

// Status returns a one-word job status.
func (r *MirrorReport) Status() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Stopped:
		return "stopped"
	case r.FinishedAt.IsZero():
		return "running"
	default:
		return "complete"
	}
}
