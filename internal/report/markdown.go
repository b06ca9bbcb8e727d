package report

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitemirror/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.MirrorReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeFailedPages(md, report)
	w.writeFailedDownloads(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with job information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.MirrorReport) {
	md.H1("Mirror Report")
	md.PlainText("")

	rows := [][]string{
		{"Host", "`" + report.Host + "`"},
		{"Seed URL", report.SeedURL},
		{"Download Root", "`" + report.DownloadRoot + "`"},
		{"Started", report.StartedAt.Format(dateFormat)},
		{"Status", statusText(report)},
	}
	if report.ID != 0 {
		rows = append([][]string{{"Job ID", strconv.FormatInt(report.ID, 10)}}, rows...)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSummary writes the counters and the outcome chart.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages visited", strconv.Itoa(report.VisitedCount())},
			{"Pages skipped", strconv.Itoa(report.FailedPageCount())},
			{"Snapshots", strconv.Itoa(len(report.Snapshots))},
			{"Resources", strconv.Itoa(len(report.Entries))},
			{"Downloaded", strconv.Itoa(report.DownloadedCount())},
			{"Failed", strconv.Itoa(report.FailedCount())},
			{"Renamed", strconv.Itoa(report.RenamedCount())},
			{"Rewritten assets", strconv.Itoa(report.RewrittenCount())},
			{"**Total size**", "**" + humanize.Bytes(uint64(max(report.TotalBytes(), 0))) + "**"},
		},
	})
	md.PlainText("")

	if len(report.Entries) > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of download outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.MirrorReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcome"),
		piechart.WithShowData(true),
	)

	if n := report.DownloadedCount(); n > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(n))
	}
	if n := report.FailedCount(); n > 0 {
		chart.LabelAndIntValue("Failed", uint64(n))
	}
	if n := len(report.Entries) - report.DownloadedCount() - report.FailedCount(); n > 0 {
		chart.LabelAndIntValue("Not attempted", uint64(n))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert matching the job outcome.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.MirrorReport) {
	switch {
	case report.Error != "":
		md.Cautionf("The job failed: %s", report.Error)
	case report.Stopped:
		md.Warningf("The job was stopped before it finished. The mirror is incomplete.")
	case report.FailedPageCount() > 0:
		md.Warningf("%d page(s) could not be loaded and were skipped.", report.FailedPageCount())
	case report.FailedCount() > 0:
		md.Importantf("%d resource(s) failed to download.", report.FailedCount())
	default:
		md.Tip("Every discovered resource was mirrored.")
	}
	md.PlainText("")
}

// writeFailedPages lists skipped pages.
func (w *MarkdownWriter) writeFailedPages(md *markdown.Markdown, report *model.MirrorReport) {
	if report.FailedPageCount() == 0 {
		return
	}

	md.H2("Skipped Pages")
	md.PlainText("")

	rows := make([][]string, 0, report.FailedPageCount())
	for _, p := range report.Pages {
		if p.Failed() {
			rows = append(rows, []string{p.URL, strconv.Itoa(p.Attempts), truncateString(p.Error, 60)})
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Attempts", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailedDownloads lists resources that failed to download.
func (w *MarkdownWriter) writeFailedDownloads(md *markdown.Markdown, report *model.MirrorReport) {
	if report.FailedCount() == 0 {
		return
	}

	md.H2("Failed Downloads")
	md.PlainText("")

	rows := make([][]string, 0, report.FailedCount())
	for _, e := range report.Entries {
		if e.Error == "" {
			continue
		}
		status := "-"
		if e.StatusCode != 0 {
			status = strconv.Itoa(e.StatusCode)
		}
		rows = append(rows, []string{truncateString(e.OriginalURL, 60), status, truncateString(e.Error, 60)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by sitemirror*")
}

// WriteComparison outputs the comparison in Markdown format.
func (w *MarkdownWriter) WriteComparison(cmp *model.Comparison) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Mirror Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Host", "`" + cmp.Host + "`"},
			{"Base job", strconv.FormatInt(cmp.BaseID, 10)},
			{"New job", strconv.FormatInt(cmp.TargetID, 10)},
			{"Added", strconv.Itoa(len(cmp.Added))},
			{"Removed", strconv.Itoa(len(cmp.Removed))},
			{"Changed", strconv.Itoa(len(cmp.Changed))},
			{"Unchanged", strconv.Itoa(cmp.Unchanged)},
		},
	})
	md.PlainText("")

	if !cmp.HasChanges() {
		md.Tip("No changes detected.")
		return len(md.String()), md.Build()
	}

	sections := []struct {
		title string
		urls  []string
	}{
		{"Added", cmp.Added},
		{"Removed", cmp.Removed},
		{"Changed", cmp.Changed},
	}
	for _, s := range sections {
		if len(s.urls) == 0 {
			continue
		}
		md.H2(s.title)
		md.PlainText("")
		md.BulletList(s.urls...)
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}
