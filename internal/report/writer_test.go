package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/nao1215/sitemirror/internal/model"
)

// createTestReport creates a finished report with sample data for testing.
func createTestReport() *model.MirrorReport {
	report := model.NewMirrorReport("site.test", "https://site.test/", "/mirror/site.test")
	report.ID = 7
	report.StartedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report.FinishedAt = report.StartedAt.Add(90 * time.Second)
	report.Pages = []model.PageVisit{
		{URL: "https://site.test/", Attempts: 1},
		{URL: "https://site.test/broken", Attempts: 3, Error: "navigation timeout"},
	}
	report.Snapshots = []string{"/mirror/site.test/tmp/Home_1.scrp"}
	report.Entries = []model.Entry{
		{
			OriginalURL: "https://site.test/",
			Mime:        "text/html",
			Extension:   "html",
			LocalPath:   "/mirror/site.test/index.html",
			Replace:     true,
			Downloaded:  true,
			StatusCode:  200,
			Size:        2048,
			Hash:        "aa",
		},
		{
			OriginalURL: "https://site.test/style.css",
			Mime:        "text/css",
			Extension:   "css",
			LocalPath:   "/mirror/site.test/style.css",
			Downloaded:  true,
			StatusCode:  200,
			Size:        512,
			Hash:        "bb",
		},
		{
			OriginalURL: "https://site.test/missing.png",
			Mime:        "image/png",
			Extension:   "png",
			LocalPath:   "/mirror/site.test/missing.png",
			Downloaded:  true,
			StatusCode:  404,
			Error:       "unexpected HTTP status: 404",
		},
	}
	return report
}

func createTestComparison() *model.Comparison {
	return &model.Comparison{
		Host:      "site.test",
		BaseID:    1,
		TargetID:  2,
		Added:     []string{"https://site.test/new.js"},
		Removed:   []string{"https://site.test/old.js"},
		Changed:   []string{"https://site.test/style.css"},
		Unchanged: 4,
	}
}

// TestSimpleWriter tests the human-readable report writer.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"SITEMIRROR REPORT", "Job ID:         7", "site.test", "Duration:       1m30s", "Complete"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes summary counters", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"Pages visited:     1", "Pages skipped:     1", "Downloaded:        2 (2.6 kB)", "Failed:            1", "Renamed:           1"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("lists failures only by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "FAILED DOWNLOADS") {
			t.Error("expected failed downloads section")
		}
		if !strings.Contains(output, "SKIPPED PAGES") {
			t.Error("expected skipped pages section")
		}
		if strings.Contains(output, "-> /mirror/site.test/style.css") {
			t.Error("successful downloads should not be listed without verbose")
		}
	})

	t.Run("lists every resource when verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "RESOURCES") {
			t.Error("expected resources section")
		}
		if !strings.Contains(output, "[~] https://site.test/") {
			t.Error("expected renamed marker for the page")
		}
		if !strings.Contains(output, "-> /mirror/site.test/style.css (text/css, 512 B)") {
			t.Error("expected stylesheet destination")
		}
	})

	t.Run("reports stopped jobs", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Stopped = true

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "STOPPED (partial results)") {
			t.Error("expected stopped status")
		}
	})

	t.Run("writes comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"MIRROR COMPARISON", "[+] https://site.test/new.js", "[-] https://site.test/old.js", "[~] https://site.test/style.css", "Unchanged: 4"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes comparison without changes", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteComparison(&model.Comparison{Host: "site.test"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "No changes detected.") {
			t.Error("expected no changes message")
		}
	})
}

// TestJSONWriter tests the JSON report writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes valid compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.MirrorReport
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Host != "site.test" || len(got.Entries) != 3 {
			t.Errorf("got host %q with %d entries", got.Host, len(got.Entries))
		}
		if strings.Count(buf.String(), "\n") != 1 {
			t.Error("compact output should be a single line")
		}
	})

	t.Run("pretty prints", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"host\": \"site.test\"") {
			t.Error("expected indented output")
		}
	})

	t.Run("writes comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got model.Comparison
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.Unchanged != 4 || len(got.Added) != 1 {
			t.Errorf("unexpected comparison: %+v", got)
		}
	})
}

// TestFullJSONWriter tests the wrapped JSON writer.
func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got JSONReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := Summary{
		PagesVisited: 1,
		PagesSkipped: 1,
		Snapshots:    1,
		Resources:    3,
		Downloaded:   2,
		Failed:       1,
		Renamed:      1,
		Bytes:        2560,
	}
	if got.Version != "v1.2.3" {
		t.Errorf("Version = %q", got.Version)
	}
	if got.Status != "complete" {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Summary != want {
		t.Errorf("Summary = %+v, want %+v", got.Summary, want)
	}
	if got.Report == nil || got.Report.ID != 7 {
		t.Error("expected embedded report")
	}
}

// TestMarkdownWriter tests the Markdown report writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes tables and chart", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewMarkdownWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n == 0 {
			t.Error("expected a non-zero byte count")
		}

		output := buf.String()
		for _, want := range []string{"# Mirror Report", "## Summary", "```mermaid", "Download Outcome", "## Skipped Pages", "## Failed Downloads", "navigation timeout"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})

	t.Run("writes tip for clean jobs", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.Pages = report.Pages[:1]
		report.Entries = report.Entries[:2]

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		if !strings.Contains(output, "Every discovered resource was mirrored.") {
			t.Error("expected tip")
		}
		if strings.Contains(output, "## Failed Downloads") {
			t.Error("did not expect failed downloads section")
		}
	})

	t.Run("writes comparison", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteComparison(createTestComparison()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		for _, want := range []string{"# Mirror Comparison", "## Added", "## Removed", "## Changed", "https://site.test/new.js"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q", want)
			}
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*model.MirrorReport) (int, error) {
	return 0, errors.New("boom")
}

func (failingWriter) WriteComparison(*model.Comparison) (int, error) {
	return 0, errors.New("boom")
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		w := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))
		n, err := w.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewMultiWriter(failingWriter{}, NewSimpleWriter(&buf))
		if _, err := w.WriteComparison(createTestComparison()); err == nil {
			t.Fatal("expected error")
		}
		if buf.Len() != 0 {
			t.Error("second writer should not run")
		}
	})
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string is unchanged", "abc", 5, "abc"},
		{"long string gets ellipsis", "abcdefgh", 6, "abc..."},
		{"tiny limit cuts without ellipsis", "abcdef", 2, "ab"},
		{"multibyte runes are kept whole", "日本語テキスト", 5, "日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

// TestExport tests the ledger export formats.
func TestExport(t *testing.T) {
	t.Parallel()

	t.Run("writes URL list in order", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteURLList(&buf, createTestReport().Entries); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := "https://site.test/\nhttps://site.test/style.css\nhttps://site.test/missing.png\n"
		if buf.String() != want {
			t.Errorf("got %q, want %q", buf.String(), want)
		}
	})

	t.Run("writes empty JSON array for no entries", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteEntriesJSON(&buf, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("got %q", buf.String())
		}
	})

	t.Run("writes CSV with header", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteEntriesCSV(&buf, createTestReport().Entries); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 4 {
			t.Fatalf("got %d records, want 4", len(records))
		}
		if records[0][0] != "original_url" {
			t.Errorf("header = %v", records[0])
		}
		if records[3][7] != "404" || records[3][10] != "unexpected HTTP status: 404" {
			t.Errorf("failure row = %v", records[3])
		}
	})

	t.Run("exports every format into a directory", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewMemMapFs()
		paths, err := ExportAll(fs, "/exports/7", createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(paths) != 3 {
			t.Fatalf("got %d paths, want 3", len(paths))
		}
		for _, name := range []string{URLListFile, EntriesJSONFile, EntriesCSVFile} {
			ok, err := afero.Exists(fs, filepath.Join("/exports/7", name))
			if err != nil || !ok {
				t.Errorf("expected %s to exist", name)
			}
		}
	})

	t.Run("fails on read-only filesystem", func(t *testing.T) {
		t.Parallel()

		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		if _, err := ExportAll(fs, "/exports", createTestReport()); err == nil {
			t.Fatal("expected error")
		}
	})
}
