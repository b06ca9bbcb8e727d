package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/log"
)

// NewRootCmd creates the root command for sitemirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemirror",
		Short: "Mirror a website for offline browsing",
		Long: `sitemirror copies a single website to the local disk.

Pages are rendered in a browser so resources loaded by scripts are captured
too. Every same-origin resource is downloaded under <download-root>/<host>/,
and references inside HTML, CSS and JavaScript files are rewritten to the
local file names.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to a rotating file at this path")

	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFileFlag retrieves the log-file flag from the command or its parent.
func getLogFileFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("log-file")
		if err != nil {
			return ""
		}
	}
	return path
}

// setupLogger builds the secure logger from the global flags and installs
// it as the slog default. The closer releases the log file.
func setupLogger(cmd *cobra.Command) (*slog.Logger, io.Closer) {
	logger, closer := log.New(cmd.ErrOrStderr(), log.Options{
		Verbose: getVerboseFlag(cmd),
		File:    getLogFileFlag(cmd),
	})
	slog.SetDefault(logger)
	return logger, closer
}
