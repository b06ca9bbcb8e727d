package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the file name looked up in the working and home
	// directories.
	DefaultConfigFile = ".sitemirror"

	// ConfigEnv names the environment variable that points at a site
	// configuration file. It wins over the search locations but not over
	// an explicit --config path.
	ConfigEnv = "SITEMIRROR_CONFIG"
)

// LoadConfigFile reads a site configuration file.
// A missing file yields ErrConfigNotFound; callers decide whether that
// matters based on whether the path was given explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

// ParseConfig decodes a site configuration document. An empty document
// yields an empty File.
func ParseConfig(data []byte) (*File, error) {
	var cf File
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse site configuration: %w", err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	return &cf, nil
}

// XDGConfigFile is the per-user configuration file under the XDG config
// directory.
func XDGConfigFile() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// ConfigSearchPaths lists where FindConfigFile looks when no path is given,
// highest priority first.
func ConfigSearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, XDGConfigFile())
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// FindConfigFile resolves the site configuration file to load.
//
// An explicit configPath is used as is. Otherwise the file named by
// ConfigEnv is used, then the first existing entry of ConfigSearchPaths.
// The empty string means there is nothing to load.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	if env := os.Getenv(ConfigEnv); env != "" && fileExists(env) {
		return env
	}

	for _, p := range ConfigSearchPaths() {
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
