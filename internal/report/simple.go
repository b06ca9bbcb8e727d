package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/sitemirror/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// It uses plain ASCII formatting so the output pipes cleanly to files.
type SimpleWriter struct {
	baseWriter

	// verbose lists every resource instead of failures only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables the full resource listing.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.MirrorReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailedPages(&sb, report)
	w.writeResources(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with job information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITEMIRROR REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	if report.ID != 0 {
		fmt.Fprintf(sb, "Job ID:         %d\n", report.ID)
	}
	fmt.Fprintf(sb, "Host:           %s\n", report.Host)
	fmt.Fprintf(sb, "Seed URL:       %s\n", report.SeedURL)
	fmt.Fprintf(sb, "Download Root:  %s\n", report.DownloadRoot)
	fmt.Fprintf(sb, "Started:        %s\n", report.StartedAt.Format(dateFormat))
	if d := report.Duration(); d > 0 {
		fmt.Fprintf(sb, "Duration:       %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(sb, "Status:         %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the counters section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.MirrorReport) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Pages visited:     %d\n", report.VisitedCount())
	fmt.Fprintf(sb, "  Pages skipped:     %d\n", report.FailedPageCount())
	fmt.Fprintf(sb, "  Snapshots:         %d\n", len(report.Snapshots))
	fmt.Fprintf(sb, "  Resources:         %d\n", len(report.Entries))
	fmt.Fprintf(sb, "  Downloaded:        %d (%s)\n", report.DownloadedCount(), humanize.Bytes(uint64(max(report.TotalBytes(), 0))))
	fmt.Fprintf(sb, "  Failed:            %d\n", report.FailedCount())
	fmt.Fprintf(sb, "  Renamed:           %d\n", report.RenamedCount())
	fmt.Fprintf(sb, "  Rewritten assets:  %d\n", report.RewrittenCount())
	sb.WriteString("\n")
}

// writeFailedPages lists pages skipped after failed navigation.
func (w *SimpleWriter) writeFailedPages(sb *strings.Builder, report *model.MirrorReport) {
	if report.FailedPageCount() == 0 {
		return
	}

	section(sb, "SKIPPED PAGES")
	for _, p := range report.Pages {
		if !p.Failed() {
			continue
		}
		fmt.Fprintf(sb, "  [!] %s\n", p.URL)
		fmt.Fprintf(sb, "      Attempts: %d, Error: %s\n", p.Attempts, p.Error)
	}
	sb.WriteString("\n")
}

// writeResources lists failed downloads, or every resource when verbose.
func (w *SimpleWriter) writeResources(sb *strings.Builder, report *model.MirrorReport) {
	if !w.verbose && report.FailedCount() == 0 {
		return
	}

	title := "FAILED DOWNLOADS"
	if w.verbose {
		title = "RESOURCES"
	}
	section(sb, title)

	for _, e := range report.Entries {
		switch {
		case e.Error != "":
			fmt.Fprintf(sb, "  [!] %s\n", e.OriginalURL)
			fmt.Fprintf(sb, "      Error: %s\n", e.Error)
		case w.verbose:
			marker := "[+]"
			if e.Replace {
				marker = "[~]"
			}
			fmt.Fprintf(sb, "  %s %s\n", marker, e.OriginalURL)
			fmt.Fprintf(sb, "      -> %s (%s, %s)\n", e.LocalPath, e.Mime, humanize.Bytes(uint64(max(e.Size, 0))))
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitemirror\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}

// WriteComparison outputs the comparison in human-readable format.
func (w *SimpleWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                       MIRROR COMPARISON\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Host:      %s\n", cmp.Host)
	fmt.Fprintf(&sb, "Base job:  %d\n", cmp.BaseID)
	fmt.Fprintf(&sb, "New job:   %d\n\n", cmp.TargetID)

	fmt.Fprintf(&sb, "  Added:     %d\n", len(cmp.Added))
	fmt.Fprintf(&sb, "  Removed:   %d\n", len(cmp.Removed))
	fmt.Fprintf(&sb, "  Changed:   %d\n", len(cmp.Changed))
	fmt.Fprintf(&sb, "  Unchanged: %d\n\n", cmp.Unchanged)

	if !cmp.HasChanges() {
		sb.WriteString("No changes detected.\n")
		return w.output.Write([]byte(sb.String()))
	}

	lists := []struct {
		marker string
		urls   []string
	}{
		{"[+]", cmp.Added},
		{"[-]", cmp.Removed},
		{"[~]", cmp.Changed},
	}
	for _, l := range lists {
		for _, u := range l.urls {
			fmt.Fprintf(&sb, "  %s %s\n", l.marker, u)
		}
	}

	return w.output.Write([]byte(sb.String()))
}
