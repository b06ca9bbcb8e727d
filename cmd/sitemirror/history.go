package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/host"
	"github.com/nao1215/sitemirror/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [host]",
		Short: "List and compare saved mirror jobs",
		Long: `History shows the mirror jobs saved in the history database.

Without arguments it lists every mirrored host. With a host it lists the
jobs of that host, newest first. With --compare it shows which resources
were added, removed or changed between two jobs of the host; changes are
detected by content hash.

Examples:
  # List mirrored hosts
  sitemirror history

  # List jobs of a host
  sitemirror history example.com

  # Compare the latest two jobs of a host
  sitemirror history --compare example.com

  # Compare job 3 with the latest job, as Markdown
  sitemirror history --compare --with-job-id 3 --markdown example.com

  # Delete a job
  sitemirror history --delete 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Bool("compare", false, "Compare two jobs of the host")
	cmd.Flags().Int64P("with-job-id", "i", 0,
		"Compare this job with the latest one instead of the latest two")
	cmd.Flags().Int64("delete", 0, "Delete the job with this ID")
	cmd.Flags().BoolP("json", "j", false, "Output comparison in JSON format")
	cmd.Flags().BoolP("markdown", "m", false, "Output comparison in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	compare, err := f.GetBool("compare")
	if err != nil {
		return err
	}
	withJobID, err := f.GetInt64("with-job-id")
	if err != nil {
		return err
	}
	deleteID, err := f.GetInt64("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := f.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := f.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := f.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var siteHost string
	if len(args) > 0 {
		siteHost = normalizeHostArg(args[0])
		if siteHost == "" {
			return fmt.Errorf("invalid host: %q", args[0])
		}
	}
	if compare && siteHost == "" {
		return errors.New("a host is required with --compare (run 'sitemirror history' to list hosts)")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	switch {
	case deleteID > 0:
		return deleteJob(ctx, out, db, deleteID)
	case compare:
		cmp, err := compareJobs(ctx, db, siteHost, withJobID)
		if err != nil {
			return err
		}
		_, err = newReportWriter(out, jsonOutput, markdownOutput, false).WriteComparison(cmp)
		return err
	case siteHost != "":
		return listJobs(ctx, out, db, siteHost)
	default:
		return listHosts(ctx, out, db)
	}
}

// normalizeHostArg accepts a bare host or a URL.
func normalizeHostArg(arg string) string {
	if strings.Contains(arg, "://") {
		h, err := host.Of(arg)
		if err != nil {
			return ""
		}
		return h
	}
	return host.Normalize(arg)
}

func listHosts(ctx context.Context, out io.Writer, db *database.MirrorDB) error {
	hosts, err := db.ListHosts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list hosts: %w", err)
	}
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No mirrored hosts found in the database.")
		fmt.Fprintln(out, "\nUse 'sitemirror mirror <url>' to mirror a site.")
		return nil
	}

	fmt.Fprintf(out, "Mirrored hosts (%d):\n\n", len(hosts))
	for _, h := range hosts {
		fmt.Fprintf(out, "  • %s\n", h)
	}
	fmt.Fprintln(out, "\nUse 'sitemirror history <host>' to see the jobs of a host.")
	return nil
}

func listJobs(ctx context.Context, out io.Writer, db *database.MirrorDB, siteHost string) error {
	jobs, err := db.ListJobs(ctx, siteHost)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintf(out, "No jobs found for %s\n", siteHost)
		return nil
	}

	fmt.Fprintf(out, "Jobs of %s (%d):\n\n", siteHost, len(jobs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-9s  %6s  %9s  %6s  %10s\n",
		"ID", "Started", "Status", "Pages", "Resources", "Failed", "Size")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 78))
	for _, j := range jobs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-9s  %6d  %9d  %6d  %10s\n",
			j.ID,
			j.StartedAt.Local().Format("2006-01-02 15:04:05"),
			j.Status,
			j.Pages,
			j.Entries,
			j.Failed,
			humanize.Bytes(uint64(max(j.Bytes, 0))),
		)
	}
	fmt.Fprintf(out, "\nUse 'sitemirror history --compare %s' to compare the latest two jobs.\n", siteHost)
	return nil
}

// compareJobs compares baseID (or the second latest job) with the latest
// job of siteHost.
func compareJobs(ctx context.Context, db *database.MirrorDB, siteHost string, baseID int64) (*model.Comparison, error) {
	latest, err := db.LatestReports(ctx, siteHost, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	if baseID == 0 {
		if len(latest) < 2 {
			return nil, fmt.Errorf("need at least two jobs of %s to compare, found %d", siteHost, len(latest))
		}
		return model.CompareReports(latest[1], latest[0]), nil
	}

	if len(latest) == 0 {
		return nil, fmt.Errorf("no jobs found for %s", siteHost)
	}
	base, err := db.GetReport(ctx, baseID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, fmt.Errorf("job %d not found", baseID)
	}
	if base.Host != siteHost {
		return nil, fmt.Errorf("job %d belongs to %s, not %s", baseID, base.Host, siteHost)
	}
	return model.CompareReports(base, latest[0]), nil
}

func deleteJob(ctx context.Context, out io.Writer, db *database.MirrorDB, id int64) error {
	ok, err := db.DeleteJob(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	fmt.Fprintf(out, "Deleted job %d\n", id)
	return nil
}
