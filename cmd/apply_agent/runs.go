package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/apply-agent/internal/db"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "List recent autonomous runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(ctx context.Context, database *db.DB) error {
			runs, err := database.ListRuns(ctx, runsLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				_, _ = fmt.Fprintln(out, "No runs yet")
				return nil
			}
			for _, r := range runs {
				_, _ = fmt.Fprintf(out, "%s  %-9s %s  %d/%d processed  %d submitted  %d failed  %d skipped\n",
					r.ID, r.Status, r.CreatedAt.Format(time.RFC3339),
					r.ProcessedJobs, r.TotalJobs, r.SubmittedJobs, r.FailedJobs, r.SkippedJobs)
			}
			return nil
		})
	},
}

var issuesSince time.Duration

var issuesCommand = &cobra.Command{
	Use:   "issues",
	Short: "Summarize automation blockers by category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(ctx context.Context, database *db.DB) error {
			counts, err := database.IssueSummary(ctx, time.Now().Add(-issuesSince))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(counts) == 0 {
				_, _ = fmt.Fprintf(out, "No automation issues in the last %s\n", issuesSince)
				return nil
			}
			for _, c := range counts {
				_, _ = fmt.Fprintf(out, "%5d  %s\n", c.Count, c.Category)
			}
			return nil
		})
	},
}

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd, func(context.Context, *db.DB) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		})
	},
}

func init() {
	runsCommand.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to list")
	issuesCommand.Flags().DurationVar(&issuesSince, "since", 7*24*time.Hour, "Look-back window")
	rootCmd.AddCommand(runsCommand, issuesCommand, migrateCommand)
}
