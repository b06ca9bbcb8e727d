package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
)

//go:embed templates/sitemirror.yaml
var configTemplate embed.FS

const templatePath = "templates/sitemirror.yaml"

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sitemirror configuration file",
		Long: `Init writes a commented .sitemirror configuration file.

The generated file shows:
- Default user agent, download directory and page limit
- URL patterns to ignore or follow
- Per-site cookies and request headers

Examples:
  # Create .sitemirror in the current directory
  sitemirror init

  # Create the file at a specific path
  sitemirror init -o ~/.sitemirror

  # Create the per-user file under $XDG_CONFIG_HOME/sitemirror
  sitemirror init --xdg

  # Overwrite an existing file
  sitemirror init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")
	cmd.Flags().Bool("xdg", false,
		"Write to the XDG config directory instead of --output")
	cmd.MarkFlagsMutuallyExclusive("output", "xdg")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	useXDG, err := cmd.Flags().GetBool("xdg")
	if err != nil {
		return err
	}
	if useXDG {
		outputPath = config.XDGConfigFile()
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may hold cookies and authorization headers.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to configure per-site settings such as:")
	fmt.Fprintln(out, "  - Cookies and request headers")
	fmt.Fprintln(out, "  - Download directory and user agent")
	fmt.Fprintln(out, "  - URL patterns to ignore or follow")
	return nil
}
