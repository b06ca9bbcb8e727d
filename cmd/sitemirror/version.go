package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildSetting returns a VCS setting recorded by the Go toolchain.
func buildSetting(key string) (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		if s.Key == key && s.Value != "" {
			return s.Value, true
		}
	}
	return "", false
}

// getVersion prefers ldflags, then the module version, then "(devel)".
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// getCommit prefers ldflags, then the short vcs.revision.
func getCommit() string {
	if commit != "" {
		return commit
	}
	if rev, ok := buildSetting("vcs.revision"); ok {
		if len(rev) > 7 {
			return rev[:7]
		}
		return rev
	}
	return "unknown"
}

// getDate prefers ldflags, then vcs.time.
func getDate() string {
	if date != "" {
		return date
	}
	if t, ok := buildSetting("vcs.time"); ok {
		return t
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, build date and Go runtime of sitemirror.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sitemirror version %s\n", getVersion())
			fmt.Fprintf(out, "  commit: %s\n", getCommit())
			fmt.Fprintf(out, "  built:  %s\n", getDate())
			fmt.Fprintf(out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
