package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/download"
	"github.com/nao1215/sitemirror/internal/event"
	"github.com/nao1215/sitemirror/internal/httpclient"
	"github.com/nao1215/sitemirror/internal/metrics"
	"github.com/nao1215/sitemirror/internal/renderer"
	"github.com/nao1215/sitemirror/internal/session"
	"github.com/nao1215/sitemirror/internal/tor"
)

// addEngineFlags registers the flags shared by mirror and serve.
func addEngineFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	f.StringP("download-root", "d", config.DefaultDownloadRoot(),
		"Directory mirrored files are written under (files land in <dir>/<host>/)")
	f.StringP("renderer", "r", config.RendererChrome,
		"Page renderer: chrome (runs scripts) or static (plain HTTP)")
	f.Bool("headless", true, "Run the browser without a window")
	f.Bool("stealth", true, "Hide browser automation from the mirrored site")
	f.String("browser-bin", "", "Chromium binary to launch (default: find or download one)")
	f.String("browser-url", "", "DevTools URL of a running browser to use instead of launching one")
	f.String("proxy", "", "Proxy URL for the browser and downloads (http, https, socks5, socks5h)")
	f.Bool("tor", false, "Start an embedded Tor daemon and route the browser and downloads through it")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Maximum time to wait for the Tor daemon to bootstrap")
	f.Bool("insecure", false, "Skip TLS certificate verification for downloads")

	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout for each page load and download")
	f.Int("retries", config.DefaultNavigationRetries, "Retries of a failed page navigation before it is skipped")
	f.Duration("retry-backoff", config.DefaultRetryBackoff, "Pause between navigation attempts")
	f.Duration("settle-delay", config.DefaultSettleDelay, "Pause before leaving a page")
	f.Duration("finish-delay", config.DefaultFinishDelay, "Pause after the last page before downloading")
	f.IntP("max-pages", "p", 0, "Maximum number of pages to visit, seed included (0 = no limit)")
	f.Float64("rate", 0, "Maximum downloads per second (0 = unlimited)")

	f.StringP("user-agent", "u", config.DefaultUserAgent, "User-Agent of the browser and the downloader")
	f.String("cookie", "", "Cookie header sent with every download request")
	f.StringToStringP("header", "H", nil, "Extra request header as name=value (repeatable)")
	f.StringSlice("ignore", nil, "Glob pattern of URL paths not to visit (repeatable)")
	f.StringSlice("follow", nil, "Only visit URL paths matching this glob pattern (repeatable)")
	f.Bool("markdown-snapshots", false, "Write a Markdown rendition next to each page snapshot")

	f.StringP("config", "c", "",
		"Configuration file path (default: .sitemirror in current or home directory)")
	f.Bool("no-history", false, "Do not save the job to the history database")
	f.String("db-dir", config.XDGDataDir(), "Directory of the history database")
}

// readEngineFlags copies the shared flags into cfg and loads the site
// configuration file.
func readEngineFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	var err error

	if cfg.DownloadRoot, err = f.GetString("download-root"); err != nil {
		return err
	}
	if cfg.Renderer, err = f.GetString("renderer"); err != nil {
		return err
	}
	if cfg.Headless, err = f.GetBool("headless"); err != nil {
		return err
	}
	if cfg.Stealth, err = f.GetBool("stealth"); err != nil {
		return err
	}
	if cfg.BrowserBin, err = f.GetString("browser-bin"); err != nil {
		return err
	}
	if cfg.BrowserURL, err = f.GetString("browser-url"); err != nil {
		return err
	}
	if cfg.Proxy, err = f.GetString("proxy"); err != nil {
		return err
	}
	if cfg.Tor, err = f.GetBool("tor"); err != nil {
		return err
	}
	if cfg.TorStartupTimeout, err = f.GetDuration("tor-timeout"); err != nil {
		return err
	}
	if cfg.InsecureSkipVerify, err = f.GetBool("insecure"); err != nil {
		return err
	}
	if cfg.Timeout, err = f.GetDuration("timeout"); err != nil {
		return err
	}
	if cfg.NavigationRetries, err = f.GetInt("retries"); err != nil {
		return err
	}
	if cfg.RetryBackoff, err = f.GetDuration("retry-backoff"); err != nil {
		return err
	}
	if cfg.SettleDelay, err = f.GetDuration("settle-delay"); err != nil {
		return err
	}
	if cfg.FinishDelay, err = f.GetDuration("finish-delay"); err != nil {
		return err
	}
	if cfg.MaxPages, err = f.GetInt("max-pages"); err != nil {
		return err
	}
	if cfg.DownloadRate, err = f.GetFloat64("rate"); err != nil {
		return err
	}
	if cfg.UserAgent, err = f.GetString("user-agent"); err != nil {
		return err
	}
	if cfg.Cookie, err = f.GetString("cookie"); err != nil {
		return err
	}
	if cfg.Headers, err = f.GetStringToString("header"); err != nil {
		return err
	}
	if cfg.IgnorePatterns, err = f.GetStringSlice("ignore"); err != nil {
		return err
	}
	if cfg.FollowPatterns, err = f.GetStringSlice("follow"); err != nil {
		return err
	}
	if cfg.SnapshotMarkdown, err = f.GetBool("markdown-snapshots"); err != nil {
		return err
	}
	noHistory, err := f.GetBool("no-history")
	if err != nil {
		return err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = f.GetString("db-dir"); err != nil {
		return err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFile = getLogFileFlag(cmd)

	if cfg.ConfigFilePath, err = f.GetString("config"); err != nil {
		return err
	}
	return loadSiteConfigs(cfg)
}

// loadSiteConfigs reads the configuration file. A missing file is only an
// error when its path was given explicitly.
func loadSiteConfigs(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.SiteConfigs = file
	return nil
}

// startTor launches the embedded Tor daemon when cfg.Tor is set and
// points cfg.Proxy at it. The returned func stops the daemon.
func startTor(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (func(), error) {
	if !cfg.Tor {
		return func() {}, nil
	}

	fmt.Fprintln(out, "Starting embedded Tor daemon (this can take a few minutes)...")
	daemon := tor.NewDaemon(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
		tor.WithLogger(logger),
	)
	if err := daemon.Start(ctx); err != nil {
		return nil, err
	}
	proxyURL, err := daemon.ProxyURL()
	if err != nil {
		_ = daemon.Stop()
		return nil, err
	}
	cfg.Proxy = proxyURL

	return func() {
		if err := daemon.Stop(); err != nil {
			logger.Warn("failed to stop Tor daemon", "error", err)
		}
	}, nil
}

// newHTTPClient builds the download client from cfg.
func newHTTPClient(cfg *config.Config) (*http.Client, error) {
	return httpclient.New(httpclient.Options{
		Proxy:              cfg.Proxy,
		Timeout:            cfg.Timeout,
		Cookie:             cfg.Cookie,
		UserAgent:          cfg.UserAgent,
		Headers:            cfg.Headers,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
}

// newRendererFactory returns the factory of the renderer cfg selects.
func newRendererFactory(cfg *config.Config, client *http.Client, logger *slog.Logger) session.RendererFactory {
	if cfg.Renderer == config.RendererStatic {
		return func(context.Context) (renderer.Renderer, error) {
			return renderer.NewStatic(client,
				renderer.WithStaticLogger(logger),
				renderer.WithStaticUserAgent(cfg.UserAgent),
			), nil
		}
	}

	opts := renderer.DefaultChromeOptions()
	opts.ControlURL = cfg.BrowserURL
	opts.Bin = cfg.BrowserBin
	opts.Headless = cfg.Headless
	opts.Stealth = cfg.Stealth
	opts.Proxy = cfg.Proxy
	opts.UserAgent = cfg.UserAgent
	opts.Headers = cfg.Headers
	opts.ScrollStep = cfg.ScrollStep
	opts.ScrollInterval = cfg.ScrollInterval
	opts.Logger = logger
	return func(ctx context.Context) (renderer.Renderer, error) {
		c, err := renderer.NewChrome(ctx, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// newSession wires a Session from cfg. store may be nil.
func newSession(cfg *config.Config, client *http.Client, emitter event.Emitter,
	collector *metrics.Collector, store session.Store, logger *slog.Logger) *session.Session {
	opts := []session.Option{
		session.WithHTTPClient(client),
		session.WithEmitter(emitter),
		session.WithMetrics(collector),
		session.WithLogger(logger),
		session.WithDownloadRoot(cfg.DownloadRoot),
		session.WithUserAgent(cfg.UserAgent),
		session.WithSnapshotMarkdown(cfg.SnapshotMarkdown),
		session.WithLinkPatterns(cfg.IgnorePatterns, cfg.FollowPatterns),
		session.WithCrawlerOptions(
			crawler.WithSettleDelay(cfg.SettleDelay),
			crawler.WithFinishDelay(cfg.FinishDelay),
			crawler.WithNavigationRetries(cfg.NavigationRetries),
			crawler.WithRetryBackoff(cfg.RetryBackoff),
			crawler.WithMaxPages(cfg.MaxPages),
		),
		session.WithDownloadOptions(download.WithRate(cfg.DownloadRate)),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	return session.New(newRendererFactory(cfg, client, logger), opts...)
}
