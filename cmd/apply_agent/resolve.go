package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/resolve"
	"github.com/spf13/cobra"
)

var resolveCommand = &cobra.Command{
	Use:   "resolve URL...",
	Short: "Resolve the official apply target of job posting URLs",
	Long: `Follows redirects and scans board pages for an external apply link, printing the
resolved target and reason for each URL. Results are cached in Redis when REDIS_URL is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolveCmd,
}

var (
	resolveSource      string
	resolveConcurrency int
	resolveJSON        bool
)

func init() {
	resolveCommand.Flags().StringVar(&resolveSource, "source", "", "Job source (e.g. linkedin, company_site)")
	resolveCommand.Flags().IntVar(&resolveConcurrency, "concurrency", 4, "Maximum concurrent fetches")
	resolveCommand.Flags().BoolVar(&resolveJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(resolveCommand)
}

func runResolveCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithContext(ctx, log)

	a := &app{cfg: cfg, log: log}
	defer a.Close()
	resolver, err := a.newResolver(ctx)
	if err != nil {
		return err
	}

	targets := make([]resolve.Target, len(args))
	for i, u := range args {
		targets[i] = resolve.Target{URL: u, Source: resolveSource}
	}
	results := resolver.ResolveAll(ctx, targets, resolveConcurrency)

	out := cmd.OutOrStdout()
	if resolveJSON {
		rows := make([]map[string]any, len(results))
		for i, r := range results {
			rows[i] = map[string]any{"url": args[i], "resolution": r}
		}
		return writeJSON(out, rows)
	}
	printResolutions(out, args, results)
	return nil
}

func printResolutions(w io.Writer, urls []string, results []resolve.Resolution) {
	for i, r := range results {
		target := r.ResolvedURL
		if target == "" {
			target = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\n  -> %s (%s", urls[i], target, r.Reason)
		if r.BoardSource {
			_, _ = fmt.Fprint(w, ", board")
		}
		_, _ = fmt.Fprintln(w, ")")
		for _, warn := range r.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warn)
		}
	}
}
