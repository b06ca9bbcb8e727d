package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitemirror/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.MirrorReport) (int, error) {
	return w.writeJSON(report)
}

// WriteComparison outputs the comparison in JSON format.
func (w *JSONWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	return w.writeJSON(cmp)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a job report with the tool version and its counters.
type JSONReport struct {
	// Version is the sitemirror version that produced the report.
	Version string `json:"version"`

	// Status is complete, stopped, running or error.
	Status string `json:"status"`

	// Summary holds the report counters.
	Summary Summary `json:"summary"`

	// Report is the full job report.
	Report *model.MirrorReport `json:"report"`
}

// Summary holds the counters derived from a report.
type Summary struct {
	PagesVisited int   `json:"pagesVisited"`
	PagesSkipped int   `json:"pagesSkipped"`
	Snapshots    int   `json:"snapshots"`
	Resources    int   `json:"resources"`
	Downloaded   int   `json:"downloaded"`
	Failed       int   `json:"failed"`
	Renamed      int   `json:"renamed"`
	Rewritten    int   `json:"rewritten"`
	Bytes        int64 `json:"bytes"`
}

// Summarize computes the counters of report.
func Summarize(report *model.MirrorReport) Summary {
	return Summary{
		PagesVisited: report.VisitedCount(),
		PagesSkipped: report.FailedPageCount(),
		Snapshots:    len(report.Snapshots),
		Resources:    len(report.Entries),
		Downloaded:   report.DownloadedCount(),
		Failed:       report.FailedCount(),
		Renamed:      report.RenamedCount(),
		Rewritten:    report.RewrittenCount(),
		Bytes:        report.TotalBytes(),
	}
}

// FullJSONWriter outputs reports wrapped with version and summary.
type FullJSONWriter struct {
	*JSONWriter

	// version is the sitemirror version string.
	version string
}

// NewFullJSONWriter creates a writer for wrapped reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.MirrorReport) (int, error) {
	return w.writeJSON(&JSONReport{
		Version: w.version,
		Status:  report.Status(),
		Summary: Summarize(report),
		Report:  report,
	})
}
