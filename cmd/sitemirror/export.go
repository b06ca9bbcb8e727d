package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Export the resource list of a saved job",
		Long: `Export writes the resources captured by a saved mirror job to a directory:

  urls.txt      one original URL per line
  entries.json  every entry with its local path, status and content hash
  entries.csv   the same as CSV

Use 'sitemirror history <host>' to find job IDs.

Examples:
  sitemirror export 3
  sitemirror export 3 --dir ./example-export`,
		Args: cobra.ExactArgs(1),
		RunE: runExportCmd,
	}

	cmd.Flags().String("dir", ".", "Directory the export files are written to")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid job id: %q", args[0])
	}
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	r, err := db.GetReport(cmd.Context(), id)
	if err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("job %d not found", id)
	}

	files, err := report.ExportAll(afero.NewOsFs(), dir, r)
	if err != nil {
		return fmt.Errorf("failed to export job %d: %w", id, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported %d resources of %s (job %d):\n", len(r.Entries), r.Host, id)
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}
