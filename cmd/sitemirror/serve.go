package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/control"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/metrics"
	"github.com/nao1215/sitemirror/internal/session"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mirror engine behind an HTTP and websocket control API",
		Long: `Serve runs the mirror engine as a long-lived process controlled over HTTP.

Endpoints:
  POST /api/commands  {"channel": "...", "params": {...}} -> {"status", "data", "error"}
  GET  /api/commands  list of supported channels
  GET  /api/events    websocket streaming job events; accepts commands too
  GET  /metrics       Prometheus metrics
  GET  /health        liveness check

Commands:
  start               {"url": "https://example.com", "downloadPath": "...", "userAgent": "..."}
  stop                stop the running job
  getDownloadPath     {"properties": ["openDirectory", "createDirectory"]}
  getSysDownloadPath  {"path": "downloads"}

Examples:
  sitemirror serve
  sitemirror serve --addr 0.0.0.0:8737 --renderer static

  curl -d '{"channel":"start","params":{"url":"https://example.com"}}' \
    http://127.0.0.1:8737/api/commands`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addEngineFlags(cmd)
	cmd.Flags().StringP("addr", "a", config.DefaultListenAddr, "Address the control server listens on")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	if err := readEngineFlags(cmd, cfg); err != nil {
		return err
	}
	cfg.ApplySite("")
	if err := cfg.ValidateEngine(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}

	logger, closer := setupLogger(cmd)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopTor, err := startTor(ctx, cfg, cmd.ErrOrStderr(), logger)
	if err != nil {
		return err
	}
	defer stopTor()

	srv, cleanup, err := newControlServer(cfg, addr, newProgressPrinter(cmd.OutOrStdout(), cfg.Verbose), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Fprintf(cmd.OutOrStdout(), "Control server listening on http://%s\n", addr)
	return srv.Run(ctx)
}

// newControlServer wires a session, its dispatcher and the websocket hub.
// Events of the session go to the hub and to progress.
func newControlServer(cfg *config.Config, addr string, progress event.Emitter, logger *slog.Logger) (*control.Server, func(), error) {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cleanup := func() {}
	var store session.Store
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		store = db
		cleanup = func() { _ = db.Close() }
	}

	// The hub needs the dispatcher, which needs the session; events are
	// forwarded once the hub exists.
	var hub *control.Hub
	forward := event.EmitterFunc(func(ev event.Event) {
		if hub != nil {
			hub.Emit(ev)
		}
	})

	collector := metrics.New()
	s := newSession(cfg, client, event.Multi{forward, progress}, collector, store, logger)
	d := control.NewDispatcher(s,
		control.WithPicker(control.RootPicker{Root: cfg.DownloadRoot}),
		control.WithDispatcherLogger(logger),
	)
	hub = control.NewHub(d, logger)

	srv := control.NewServer(addr, d, hub,
		control.WithMetricsHandler(collector.Handler()),
		control.WithServerLogger(logger),
	)
	return srv, func() {
		s.Stop()
		cleanup()
	}, nil
}
