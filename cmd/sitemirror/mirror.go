package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/metrics"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/report"
	"github.com/nao1215/sitemirror/internal/session"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url>",
		Short: "Mirror a website to the local disk",
		Long: `Mirror visits the given URL and every same-origin page linked from it,
records each resource the pages load, downloads them and rewrites references
so the copy can be browsed offline.

Files are written to <download-root>/<host>/. Every finished job is saved to
the history database unless --no-history is given.

Examples:
  # Mirror a site into ~/Downloads/example.com
  sitemirror mirror https://example.com

  # Use plain HTTP instead of a browser and stop after 50 pages
  sitemirror mirror --renderer static --max-pages 50 https://example.com

  # Skip the blog and write a Markdown report
  sitemirror mirror --ignore '/blog/*' --markdown -o report.md https://example.com

  # Export the list of mirrored URLs as text, JSON and CSV
  sitemirror mirror --export-dir ./export https://example.com

Configuration file (.sitemirror) example:
  sites:
    example.com:
      cookie: "session_id=abc123"
      headers:
        Authorization: "Bearer token"
      maxPages: 200`,
		Args: cobra.ExactArgs(1),
		RunE: runMirrorCmd,
	}

	addEngineFlags(cmd)

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("export-dir", "",
		"Write the mirrored URL list (urls.txt, entries.json, entries.csv) to this directory")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address while the job runs")

	return cmd
}

func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildMirrorConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
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

	return runMirror(ctx, cfg, cmd.OutOrStdout(), logger)
}

// buildMirrorConfig creates a Config from the command's flags and applies
// the site configuration of the seed's host.
func buildMirrorConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	if err := readEngineFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.ExportDir, err = cmd.Flags().GetString("export-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = cmd.Flags().GetString("metrics-addr"); err != nil {
		return nil, err
	}

	if origin, err := host.Of(cfg.URL); err == nil {
		cfg.ApplySite(origin)
	}
	return cfg, nil
}

// runMirror executes one job and writes its report.
func runMirror(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	client, err := newHTTPClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	var store session.Store
	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		store = db
		logger.Info("database opened", "path", db.Path())
	}

	collector := metrics.New()
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, collector.Handler(), logger)
		defer shutdown()
	}

	// Progress goes to stderr when the report itself goes to stdout.
	progressOut := out
	if cfg.ReportFile == "" && (cfg.JSONReport || cfg.MarkdownReport) {
		progressOut = os.Stderr
	}
	progress := newProgressPrinter(progressOut, cfg.Verbose)

	s := newSession(cfg, client, progress, collector, store, logger)

	fmt.Fprintf(progressOut, "Mirroring %s into %s\n", cfg.URL, cfg.DownloadRoot)
	start := time.Now()

	mirrorReport, runErr := s.Run(ctx, session.Job{Seed: cfg.URL})
	if mirrorReport == nil {
		return runErr
	}
	fmt.Fprintf(progressOut, "Job finished in %s\n\n", time.Since(start).Round(time.Millisecond))

	if err := writeReport(cfg, out, mirrorReport); err != nil {
		logger.Error("report failed", "host", mirrorReport.Host, "error", err)
	}

	if cfg.ExportDir != "" {
		files, err := report.ExportAll(afero.NewOsFs(), cfg.ExportDir, mirrorReport)
		if err != nil {
			logger.Error("export failed", "dir", cfg.ExportDir, "error", err)
		}
		for _, f := range files {
			fmt.Fprintf(progressOut, "Exported %s\n", f)
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// writeReport writes r in the format cfg selects, to cfg.ReportFile or out.
func writeReport(cfg *config.Config, out io.Writer, r *model.MirrorReport) error {
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	_, err := newReportWriter(out, cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose).Write(r)
	return err
}

// newReportWriter selects the report format. JSON wins over Markdown.
func newReportWriter(out io.Writer, jsonFormat, markdownFormat, verbose bool) report.Writer {
	switch {
	case jsonFormat:
		return report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case markdownFormat:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}

// serveMetrics exposes handler on addr until the returned function is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
