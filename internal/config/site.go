package config

import (
	"maps"

	"github.com/nao1215/sitemirror/internal/host"
)

// SiteConfig holds site-specific configuration for a single host.
// This allows customizing mirror behavior per site.
type SiteConfig struct {
	// UserAgent overrides the default User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// DownloadPath overrides the default download root for this site.
	DownloadPath string `yaml:"downloadPath,omitempty"`

	// Cookie is an HTTP cookie to use when downloading from this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// MaxPages caps the pages visited on this site. 0 means no cap.
	MaxPages int `yaml:"maxPages,omitempty"`
}

// File represents the structure of the .sitemirror configuration file.
type File struct {
	// Sites maps hosts to their site-specific configurations.
	// Keys are host names without scheme; a leading "www." is ignored.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(siteHost string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	siteConfig, ok := cf.lookup(siteHost)
	if !ok {
		return result
	}

	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.DownloadPath != "" {
		result.DownloadPath = siteConfig.DownloadPath
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}
	return result
}

// lookup finds the site entry whose key normalizes to the same host.
func (cf *File) lookup(siteHost string) (SiteConfig, bool) {
	if sc, ok := cf.Sites[siteHost]; ok {
		return sc, true
	}
	for key, sc := range cf.Sites {
		if host.SameOrigin(key, siteHost) {
			return sc, true
		}
	}
	return SiteConfig{}, false
}
