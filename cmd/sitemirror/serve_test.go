package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/control"
	"github.com/nao1215/sitemirror/internal/event"
)

func newTestControlServer(t *testing.T, downloadRoot string) *httptest.Server {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Renderer = config.RendererStatic
	cfg.DownloadRoot = downloadRoot
	cfg.SettleDelay = 0
	cfg.FinishDelay = 0
	cfg.RetryBackoff = 0
	cfg.SaveToDB = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, cleanup, err := newControlServer(cfg, "127.0.0.1:0", event.Discard, logger)
	if err != nil {
		t.Fatalf("newControlServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cleanup()
	})
	return ts
}

func sendCommand(t *testing.T, ts *httptest.Server, body string) control.Result {
	t.Helper()

	resp, err := ts.Client().Post(ts.URL+"/api/commands", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var res control.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return res
}

func TestServeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewServeCmd()
	flag := cmd.Flags().Lookup("addr")
	if flag == nil {
		t.Fatal("expected addr flag")
	}
	if flag.DefValue != config.DefaultListenAddr {
		t.Errorf("expected default %q, got %q", config.DefaultListenAddr, flag.DefValue)
	}
}

func TestControlServer(t *testing.T) {
	t.Parallel()

	t.Run("answers health checks", func(t *testing.T) {
		t.Parallel()

		ts := newTestControlServer(t, t.TempDir())
		resp, err := ts.Client().Get(ts.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("serves metrics", func(t *testing.T) {
		t.Parallel()

		ts := newTestControlServer(t, t.TempDir())
		resp, err := ts.Client().Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "sitemirror_pages_visited_total") {
			t.Errorf("expected sitemirror metrics, got:\n%s", body)
		}
	})

	t.Run("picks the download root as directory", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		ts := newTestControlServer(t, root)
		res := sendCommand(t, ts, `{"channel":"getDownloadPath","params":{"properties":["openDirectory"]}}`)
		if res.Status != http.StatusOK || res.Data != root {
			t.Errorf("result = %+v, want data %q", res, root)
		}
	})

	t.Run("reports unknown commands", func(t *testing.T) {
		t.Parallel()

		ts := newTestControlServer(t, t.TempDir())
		res := sendCommand(t, ts, `{"channel":"resume"}`)
		if res.Status != http.StatusNotFound || res.Error != "unknown command: resume" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("mirrors a site started over the API", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t)
		root := t.TempDir()
		ts := newTestControlServer(t, root)

		res := sendCommand(t, ts, `{"channel":"start","params":{"url":"`+site.URL+`/"}}`)
		if res.Status != http.StatusOK {
			t.Fatalf("start result = %+v", res)
		}

		target := filepath.Join(root, "127.0.0.1", "style.css")
		deadline := time.Now().Add(10 * time.Second)
		for {
			if _, err := os.Stat(target); err == nil {
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("%s was not mirrored in time", target)
			}
			time.Sleep(20 * time.Millisecond)
		}

		if res := sendCommand(t, ts, `{"channel":"stop"}`); res.Status != http.StatusOK {
			t.Errorf("stop result = %+v", res)
		}
	})
}
