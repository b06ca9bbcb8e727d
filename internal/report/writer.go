package report

import (
	"io"

	"github.com/nao1215/sitemirror/internal/model"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs the job report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.MirrorReport) (int, error)

	// WriteComparison outputs the difference between two jobs.
	WriteComparison(cmp *model.Comparison) (int, error)
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.MirrorReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteComparison(cmp)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// dateFormat is the timestamp layout used in human-readable reports.
const dateFormat = "2006-01-02 15:04:05 MST"

// statusText describes the job outcome in words.
func statusText(report *model.MirrorReport) string {
	switch report.Status() {
	case "error":
		return "ERROR - " + report.Error
	case "stopped":
		return "STOPPED (partial results)"
	case "running":
		return "RUNNING"
	default:
		return "Complete"
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
