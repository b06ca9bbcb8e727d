package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/adrg/xdg"
)

// systemDirs maps directory names accepted by getSysDownloadPath to
// their resolvers.
var systemDirs = map[string]func() string{
	"home":      func() string { return xdg.Home },
	"downloads": func() string { return xdg.UserDirs.Download },
	"documents": func() string { return xdg.UserDirs.Documents },
	"desktop":   func() string { return xdg.UserDirs.Desktop },
	"pictures":  func() string { return xdg.UserDirs.Pictures },
	"music":     func() string { return xdg.UserDirs.Music },
	"videos":    func() string { return xdg.UserDirs.Videos },
	"temp":      os.TempDir,
	"appData":   func() string { return xdg.ConfigHome },
	"userData":  XDGDataDir,
	"logs":      func() string { return filepath.Join(xdg.StateHome, AppName) },
	"data":      func() string { return xdg.DataHome },
	"config":    func() string { return xdg.ConfigHome },
	"cache":     func() string { return xdg.CacheHome },
}

// SystemDir resolves a named system directory such as "downloads" or
// "documents".
func SystemDir(name string) (string, error) {
	resolve, ok := systemDirs[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSystemDir, name)
	}
	return resolve(), nil
}

// SystemDirNames returns the supported system directory names, sorted.
func SystemDirNames() []string {
	names := make([]string, 0, len(systemDirs))
	for name := range systemDirs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
