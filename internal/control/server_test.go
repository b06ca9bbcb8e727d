package control

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nao1215/sitemirror/internal/event"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*httptest.Server, *Hub, *fakeSession) {
	t.Helper()

	sess := &fakeSession{}
	d := NewDispatcher(sess)
	hub := NewHub(d, nil)
	srv := httptest.NewServer(NewServer("127.0.0.1:0", d, hub, opts...).Handler())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub, sess
}

func postCommand(t *testing.T, srv *httptest.Server, body string) (int, Result) {
	t.Helper()

	resp, err := srv.Client().Post(srv.URL+"/api/commands", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, res
}

func TestServerCommands(t *testing.T) {
	t.Parallel()

	t.Run("runs a start command", func(t *testing.T) {
		t.Parallel()

		srv, _, sess := newTestServer(t)
		code, res := postCommand(t, srv, `{"channel":"start","params":{"url":"https://site.test/"}}`)
		if code != http.StatusOK || res.Status != http.StatusOK {
			t.Fatalf("code = %d, result = %+v", code, res)
		}
		if len(sess.started()) != 1 {
			t.Error("expected the session to be started")
		}
	})

	t.Run("answers unknown commands with 404", func(t *testing.T) {
		t.Parallel()

		srv, _, _ := newTestServer(t)
		code, res := postCommand(t, srv, `{"channel":"reboot"}`)
		if code != http.StatusNotFound || res.Status != http.StatusNotFound {
			t.Errorf("code = %d, result = %+v", code, res)
		}
	})

	t.Run("answers malformed bodies with 400", func(t *testing.T) {
		t.Parallel()

		srv, _, _ := newTestServer(t)
		code, res := postCommand(t, srv, `{"channel":`)
		if code != http.StatusBadRequest || res.Error == "" {
			t.Errorf("code = %d, result = %+v", code, res)
		}
	})

	t.Run("lists commands", func(t *testing.T) {
		t.Parallel()

		srv, _, _ := newTestServer(t)
		resp, err := srv.Client().Get(srv.URL + "/api/commands")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()

		var body map[string][]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body["commands"]) != 4 {
			t.Errorf("commands = %v", body["commands"])
		}
	})
}

func TestServerHealthAndMetrics(t *testing.T) {
	t.Parallel()

	t.Run("reports health", func(t *testing.T) {
		t.Parallel()

		srv, _, _ := newTestServer(t)
		resp, err := srv.Client().Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("mounts the metrics handler", func(t *testing.T) {
		t.Parallel()

		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "sitemirror_pages_visited_total 3\n")
		})
		srv, _, _ := newTestServer(t, WithMetricsHandler(metrics))

		resp, err := srv.Client().Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !bytes.Contains(body, []byte("sitemirror_pages_visited_total")) {
			t.Errorf("body = %s", body)
		}
	})

	t.Run("has no metrics route without a handler", func(t *testing.T) {
		t.Parallel()

		srv, _, _ := newTestServer(t)
		resp, err := srv.Client().Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestHubWebsocket(t *testing.T) {
	t.Parallel()

	srv, hub, sess := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(Command{ID: "1", Channel: CommandStop}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var res Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read result: %v", err)
	}
	if res.ID != "1" || res.Status != http.StatusOK {
		t.Errorf("result = %+v", res)
	}
	if sess.stops() != 1 {
		t.Errorf("stops = %d, want 1", sess.stops())
	}
	if hub.Clients() != 1 {
		t.Errorf("Clients = %d, want 1", hub.Clients())
	}

	hub.Emit(event.Event{Channel: event.Scanned, Params: event.ScanSummary{ScannedSize: 4}})

	var ev struct {
		Channel string `json:"channel"`
		Params  struct {
			ScannedSize int `json:"scannedSize"`
		} `json:"params"`
	}
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Channel != string(event.Scanned) || ev.Params.ScannedSize != 4 {
		t.Errorf("event = %+v", ev)
	}
}

func TestServerServe(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(&fakeSession{})
	s := NewServer("127.0.0.1:0", d, NewHub(d, nil))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	var lastErr error
	for range 50 {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			lastErr = nil
			break
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	if lastErr != nil {
		t.Fatalf("server did not come up: %v", lastErr)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
