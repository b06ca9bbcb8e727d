package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Renderer names.
const (
	// RendererChrome drives a Chromium browser over the DevTools protocol.
	RendererChrome = "chrome"

	// RendererStatic fetches pages over plain HTTP without running scripts.
	RendererStatic = "static"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"

	// DefaultTimeout bounds every HTTP request and page load.
	DefaultTimeout = 60 * time.Second

	// DefaultNavigationRetries is how often a failed navigation is retried
	// before the page is skipped.
	DefaultNavigationRetries = 2

	// DefaultRetryBackoff is the pause between navigation attempts.
	DefaultRetryBackoff = time.Second

	// DefaultSettleDelay is the pause before leaving a page so trailing
	// network events can arrive.
	DefaultSettleDelay = 200 * time.Millisecond

	// DefaultFinishDelay is the pause after the last page before the
	// download pass starts.
	DefaultFinishDelay = 300 * time.Millisecond

	// DefaultScrollStep is the auto-scroll distance in pixels.
	DefaultScrollStep = 100

	// DefaultScrollInterval is the pause between auto-scroll steps.
	DefaultScrollInterval = 400 * time.Millisecond

	// DefaultTorStartupTimeout bounds the bootstrap of the embedded Tor
	// daemon. Bootstrapping usually takes one to three minutes.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultListenAddr is the address of the control server.
	DefaultListenAddr = "127.0.0.1:8737"

	// DefaultUserAgent is a desktop Chrome User-Agent.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Config holds all configuration options for a mirror job.
// It is filled from CLI flags and the site configuration file and passed
// through the application explicitly.
type Config struct {
	// URL is the seed URL of the mirror job.
	URL string

	// DownloadRoot is the directory mirrored files are written under.
	// Files of a job land in DownloadRoot/<host>/.
	DownloadRoot string

	// Renderer selects the page renderer: RendererChrome or RendererStatic.
	Renderer string

	// Headless runs the launched browser without a window.
	Headless bool

	// Stealth applies anti-automation-detection evasions to the browser.
	Stealth bool

	// BrowserBin is the Chromium binary to launch. Empty lets the launcher
	// find or download one.
	BrowserBin string

	// BrowserURL connects to a running browser's DevTools endpoint instead
	// of launching one.
	BrowserURL string

	// Proxy is an http, https, socks5 or socks5h proxy URL used by the
	// browser and the downloader.
	Proxy string

	// Tor starts an embedded Tor daemon and routes the browser and the
	// downloader through its SOCKS port. It excludes Proxy.
	Tor bool

	// TorStartupTimeout bounds the Tor bootstrap.
	TorStartupTimeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification for downloads.
	InsecureSkipVerify bool

	// Timeout bounds every HTTP request and page load.
	Timeout time.Duration

	// NavigationRetries is how often a failed navigation is retried.
	NavigationRetries int

	// RetryBackoff is the pause between navigation attempts.
	RetryBackoff time.Duration

	// SettleDelay is the pause before leaving a page.
	SettleDelay time.Duration

	// FinishDelay is the pause after the last page.
	FinishDelay time.Duration

	// ScrollStep and ScrollInterval tune the auto-scroll sequence.
	ScrollStep     int
	ScrollInterval time.Duration

	// MaxPages caps the number of visited pages, seed included.
	// 0 means no cap.
	MaxPages int

	// DownloadRate limits downloads per second. 0 means unlimited.
	DownloadRate float64

	// UserAgent is the User-Agent of the renderer and the downloader.
	UserAgent string

	// Cookie is sent with every download request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string

	// Headers are sent with every page and download request.
	Headers map[string]string

	// IgnorePatterns are glob patterns of URL paths the crawl skips.
	IgnorePatterns []string

	// FollowPatterns restrict the crawl to URL paths matching one of them.
	FollowPatterns []string

	// SnapshotMarkdown writes a Markdown rendition next to each snapshot.
	SnapshotMarkdown bool

	// Verbose enables debug logging.
	Verbose bool

	// LogFile adds a rotating JSON log file.
	LogFile string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .sitemirror in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the
	// config file.
	SiteConfigs *File

	// JSONReport and MarkdownReport select the report format. They are
	// mutually exclusive; the default is plain text.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ExportDir writes the ledger exports (URL list, JSON, CSV) into
	// this directory after the job.
	ExportDir string

	// DBDir is the directory of the job history database.
	DBDir string

	// SaveToDB saves the finished job to the history database.
	SaveToDB bool

	// MetricsAddr serves Prometheus metrics during the job when set.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DownloadRoot:      DefaultDownloadRoot(),
		Renderer:          RendererChrome,
		Headless:          true,
		Stealth:           true,
		Timeout:           DefaultTimeout,
		NavigationRetries: DefaultNavigationRetries,
		RetryBackoff:      DefaultRetryBackoff,
		SettleDelay:       DefaultSettleDelay,
		FinishDelay:       DefaultFinishDelay,
		ScrollStep:        DefaultScrollStep,
		ScrollInterval:    DefaultScrollInterval,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         DefaultUserAgent,
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// DefaultDownloadRoot returns the user's download directory.
func DefaultDownloadRoot() string {
	return xdg.UserDirs.Download
}

// XDGDataDir returns the XDG data directory for sitemirror.
// On Linux: ~/.local/share/sitemirror
// On macOS: ~/Library/Application Support/sitemirror
// On Windows: %LOCALAPPDATA%\sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitemirror.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for sitemirror.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if !validSeed(c.URL) {
		return ErrInvalidURL
	}

	if err := c.ValidateEngine(); err != nil {
		return err
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// ValidateEngine checks the settings shared by one-shot jobs and the
// control server, where the seed URL arrives later with each command.
func (c *Config) ValidateEngine() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Renderer != RendererChrome && c.Renderer != RendererStatic {
		return ErrUnknownRenderer
	}

	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if c.NavigationRetries < 0 {
		return ErrInvalidRetries
	}

	if c.DownloadRate < 0 {
		return ErrInvalidRate
	}

	if c.RetryBackoff < 0 || c.SettleDelay < 0 || c.FinishDelay < 0 || c.ScrollInterval < 0 {
		return ErrInvalidDelay
	}

	if c.Tor {
		if c.Proxy != "" {
			return ErrConflictingProxy
		}
		if c.TorStartupTimeout <= 0 {
			return ErrInvalidTimeout
		}
	}

	return nil
}

func validSeed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

// ApplySite merges the site configuration of the seed's host into c.
// Values already set on c are kept for scalar fields; headers are merged
// with c's own headers taking precedence.
func (c *Config) ApplySite(host string) {
	if c.SiteConfigs == nil {
		return
	}
	site := c.SiteConfigs.GetSiteConfig(host)

	if c.Cookie == "" {
		c.Cookie = site.Cookie
	}
	if site.UserAgent != "" && (c.UserAgent == "" || c.UserAgent == DefaultUserAgent) {
		c.UserAgent = site.UserAgent
	}
	if site.DownloadPath != "" && (c.DownloadRoot == "" || c.DownloadRoot == DefaultDownloadRoot()) {
		c.DownloadRoot = site.DownloadPath
	}
	if c.MaxPages == 0 {
		c.MaxPages = site.MaxPages
	}
	if len(site.Headers) > 0 {
		merged := make(map[string]string, len(site.Headers)+len(c.Headers))
		for k, v := range site.Headers {
			merged[k] = v
		}
		for k, v := range c.Headers {
			merged[k] = v
		}
		c.Headers = merged
	}
	if len(c.IgnorePatterns) == 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(c.FollowPatterns) == 0 {
		c.FollowPatterns = site.FollowPatterns
	}
}
