package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/report"
)

const (
	siteHome  = `<html><head><title>Home</title><link rel="stylesheet" href="/style.css"></head><body><a href="/about">About</a></body></html>`
	siteAbout = `<html><head><title>About</title></head><body><p>Team</p></body></html>`
	siteStyle = `body { background: url(/bg.png); }`
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(siteHome))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(siteAbout))
	})
	mux.HandleFunc("/style.css", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write([]byte(siteStyle))
	})
	mux.HandleFunc("/bg.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// writeEmptyConfig keeps tests independent of a ~/.sitemirror on the machine.
func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".sitemirror")
	if err := os.WriteFile(path, []byte("sites: {}\n"), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func staticMirrorArgs(t *testing.T, downloadRoot, dbDir string) []string {
	t.Helper()
	return []string{
		"mirror",
		"--renderer", config.RendererStatic,
		"--settle-delay", "0",
		"--finish-delay", "0",
		"--retry-backoff", "0",
		"--download-root", downloadRoot,
		"--db-dir", dbDir,
		"--config", writeEmptyConfig(t),
	}
}

func TestMirrorCmd(t *testing.T) {
	t.Parallel()

	t.Run("mirrors a site with the static renderer", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		tmp := t.TempDir()
		downloadRoot := filepath.Join(tmp, "mirror")
		reportPath := filepath.Join(tmp, "reports", "report.json")
		exportDir := filepath.Join(tmp, "export")

		args := append(staticMirrorArgs(t, downloadRoot, filepath.Join(tmp, "db")),
			"--json", "-o", reportPath, "--export-dir", exportDir, srv.URL+"/")

		var out, errOut bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			t.Fatalf("unexpected error: %v\nstderr: %s", err, errOut.String())
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report not written: %v", err)
		}
		var got report.JSONReport
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("report is not JSON: %v", err)
		}
		if got.Status != "complete" {
			t.Errorf("status = %q, want complete", got.Status)
		}
		if got.Summary.PagesVisited != 2 {
			t.Errorf("pages visited = %d, want 2", got.Summary.PagesVisited)
		}

		css, err := os.ReadFile(filepath.Join(downloadRoot, "127.0.0.1", "style.css"))
		if err != nil {
			t.Fatalf("stylesheet not mirrored: %v", err)
		}
		if !strings.Contains(string(css), "bg.png") {
			t.Errorf("unexpected stylesheet content: %s", css)
		}

		urls, err := os.ReadFile(filepath.Join(exportDir, report.URLListFile))
		if err != nil {
			t.Fatalf("url list not exported: %v", err)
		}
		if !strings.Contains(string(urls), srv.URL+"/style.css") {
			t.Errorf("url list misses the stylesheet:\n%s", urls)
		}

		if !strings.Contains(out.String(), "Mirroring "+srv.URL) {
			t.Errorf("expected progress output, got:\n%s", out.String())
		}

		if _, err := os.Stat(filepath.Join(tmp, "db", "sitemirror.db")); err != nil {
			t.Errorf("expected job to be saved to history: %v", err)
		}
	})

	t.Run("does not save with no-history", func(t *testing.T) {
		t.Parallel()

		srv := newTestSite(t)
		tmp := t.TempDir()
		dbDir := filepath.Join(tmp, "db")

		args := append(staticMirrorArgs(t, filepath.Join(tmp, "mirror"), dbDir),
			"--no-history", "--max-pages", "1", srv.URL+"/")

		var out bytes.Buffer
		root := NewRootCmd()
		root.SetOut(&out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(args)
		if err := root.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(dbDir); !os.IsNotExist(err) {
			t.Errorf("expected no database directory, stat error = %v", err)
		}
		if !strings.Contains(out.String(), "SITEMIRROR REPORT") {
			t.Errorf("expected a text report, got:\n%s", out.String())
		}
		if !strings.Contains(out.String(), "Pages visited:     1") {
			t.Errorf("expected the page cap to stop after the seed, got:\n%s", out.String())
		}
	})

	t.Run("rejects an invalid URL", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"mirror", "--config", writeEmptyConfig(t), "ftp://example.com"})

		err := root.Execute()
		if !errors.Is(err, config.ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})

	t.Run("rejects both report formats", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"mirror", "--config", writeEmptyConfig(t), "--json", "--markdown", "https://example.com"})

		err := root.Execute()
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("fails when an explicit config file is missing", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"mirror", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "https://example.com"})

		err := root.Execute()
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("rejects tor together with a proxy", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"mirror", "--config", writeEmptyConfig(t),
			"--tor", "--proxy", "socks5://127.0.0.1:9050", "http://example.onion/"})

		err := root.Execute()
		if !errors.Is(err, config.ErrConflictingProxy) {
			t.Errorf("expected ErrConflictingProxy, got %v", err)
		}
	})
}

func TestStartTorDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Proxy = "http://127.0.0.1:3128"
	var out bytes.Buffer

	stopTor, err := startTor(t.Context(), cfg, &out, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("startTor() = %v", err)
	}
	stopTor()
	if cfg.Proxy != "http://127.0.0.1:3128" {
		t.Errorf("Proxy = %q, want it untouched", cfg.Proxy)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestBuildMirrorConfig(t *testing.T) {
	t.Parallel()

	t.Run("applies the site config of the seed host", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), ".sitemirror")
		content := `
defaults:
  maxPages: 10
sites:
  example.com:
    cookie: "sid=1"
    headers:
      X-Team: docs
    ignorePatterns:
      - "/private/*"
`
		if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewMirrorCmd()
		args := []string{"--config", cfgPath, "-H", "Accept-Language=en", "https://www.example.com/docs"}
		if err := cmd.ParseFlags(args); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildMirrorConfig(cmd, cmd.Flags().Args())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.URL != "https://www.example.com/docs" {
			t.Errorf("URL = %q", cfg.URL)
		}
		if cfg.Cookie != "sid=1" {
			t.Errorf("Cookie = %q, want sid=1", cfg.Cookie)
		}
		if cfg.MaxPages != 10 {
			t.Errorf("MaxPages = %d, want 10", cfg.MaxPages)
		}
		if cfg.Headers["X-Team"] != "docs" || cfg.Headers["Accept-Language"] != "en" {
			t.Errorf("Headers = %v", cfg.Headers)
		}
		if len(cfg.IgnorePatterns) != 1 || cfg.IgnorePatterns[0] != "/private/*" {
			t.Errorf("IgnorePatterns = %v", cfg.IgnorePatterns)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	t.Run("flags win over the site config", func(t *testing.T) {
		t.Parallel()

		cfgPath := filepath.Join(t.TempDir(), ".sitemirror")
		if err := os.WriteFile(cfgPath, []byte("defaults:\n  maxPages: 10\n  cookie: a=1\n"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewMirrorCmd()
		if err := cmd.ParseFlags([]string{"--config", cfgPath, "--max-pages", "3", "--cookie", "b=2", "https://example.com"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildMirrorConfig(cmd, cmd.Flags().Args())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxPages != 3 {
			t.Errorf("MaxPages = %d, want 3", cfg.MaxPages)
		}
		if cfg.Cookie != "b=2" {
			t.Errorf("Cookie = %q, want b=2", cfg.Cookie)
		}
	})
}

func TestNewReportWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		json     bool
		markdown bool
		want     string
	}{
		{name: "json selects the full JSON writer", json: true, want: "*report.FullJSONWriter"},
		{name: "markdown selects the Markdown writer", markdown: true, want: "*report.MarkdownWriter"},
		{name: "default is plain text", want: "*report.SimpleWriter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := newReportWriter(&bytes.Buffer{}, tt.json, tt.markdown, false)
			var got string
			switch w.(type) {
			case *report.FullJSONWriter:
				got = "*report.FullJSONWriter"
			case *report.MarkdownWriter:
				got = "*report.MarkdownWriter"
			case *report.SimpleWriter:
				got = "*report.SimpleWriter"
			}
			if got != tt.want {
				t.Errorf("newReportWriter() = %T, want %s", w, tt.want)
			}
		})
	}
}
