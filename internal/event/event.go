package event

import "github.com/nao1215/sitemirror/internal/model"

// Channel names an event stream.
type Channel string

// Event channels.
const (
	// AddURL carries a newly captured ledger entry.
	AddURL Channel = "addUrl"
	// LoadedURL reports a page transition during the crawl.
	LoadedURL Channel = "loaded-url"
	// Scanned reports that the link frontier is exhausted.
	Scanned Channel = "scanned"
	// Downloading opens the download pass.
	Downloading Channel = "downloading"
	// Downloaded closes the download pass.
	Downloaded Channel = "downloaded"
	// DownloadFile reports one finished download attempt.
	DownloadFile Channel = "downloadFile"
	// Changing opens the rewrite pass.
	Changing Channel = "changing"
	// Changed closes the rewrite pass.
	Changed Channel = "changed"
	// ReplacedFile reports one rewritten asset.
	ReplacedFile Channel = "replacedFile"
	// Stop reports that the session was torn down.
	Stop Channel = "stop"
	// Error reports a contained failure. It never changes control flow.
	Error Channel = "error"
)

// Failure stages reported on the Error channel.
const (
	StageCapture  = "capture"
	StageNavigate = "navigate"
	StageSnapshot = "snapshot"
	StageDownload = "download"
	StageRewrite  = "rewrite"
	StagePersist  = "persist"
)

// Event is a single message to the control channel.
type Event struct {
	Channel Channel `json:"channel"`
	Params  any     `json:"params"`
}

// Progress is the payload of LoadedURL.
type Progress struct {
	URLSize      int    `json:"urlSize"`
	ScannedCount int    `json:"scannedCount"`
	PendingCount int    `json:"pendingCount"`
	URL          string `json:"url"`
}

// ScanSummary is the payload of Scanned.
type ScanSummary struct {
	ScannedSize int `json:"scannedSize"`
}

// FileCount is the payload of the download and rewrite bracket events.
type FileCount struct {
	FileCount int `json:"fileCount"`
}

// FileRef is the payload of DownloadFile and ReplacedFile.
type FileRef struct {
	URL       string `json:"url"`
	LocalPath string `json:"localPath,omitempty"`
}

// Failure is the payload of Error.
type Failure struct {
	Stage   string `json:"stage"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message"`
}

// Empty is the payload of Stop.
type Empty struct{}

// NewAddURL builds an AddURL event. The entry is copied.
func NewAddURL(e model.Entry) Event {
	return Event{Channel: AddURL, Params: e}
}

// NewFailure builds an Error event from err.
func NewFailure(stage, url string, err error) Event {
	return Event{Channel: Error, Params: Failure{Stage: stage, URL: url, Message: err.Error()}}
}

// Emitter receives events. Implementations must not block for long; the
// crawl waits for Emit to return.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev Event)

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) {
	f(ev)
}

// Multi fans an event out to several emitters in order.
type Multi []Emitter

// Emit forwards ev to every non-nil emitter.
func (m Multi) Emit(ev Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(ev)
		}
	}
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
