package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/workflow"
	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous workflow over a list of jobs and wait for it",
	Long: `Starts an autonomous run in-process, prints progress until every job is processed,
then prints the per-job logs. Ctrl-C stops the run: in-flight applications are flagged
for review and the browser is released at its next checkpoint.`,
	RunE: runWorkflowCmd,
}

var (
	runJobs                []string
	runResumeID            string
	runMinScore            float64
	runSafeMode            bool
	runRequireConfirmation bool
	runMaxRetries          int
	runJSON                bool
)

func init() {
	runCommand.Flags().StringSliceVarP(&runJobs, "job", "j", nil, "Job ID to process (repeatable or comma-separated)")
	runCommand.Flags().StringVar(&runResumeID, "resume", "", "Resume ID (defaults to the primary resume)")
	runCommand.Flags().Float64Var(&runMinScore, "min-score", 0, "Minimum match score to apply (defaults to the configured default_min_score)")
	runCommand.Flags().BoolVar(&runSafeMode, "safe-mode", false, "Never submit; stop at the review step")
	runCommand.Flags().BoolVar(&runRequireConfirmation, "require-confirmation", false, "Stop before the final submit click and wait for manual confirmation")
	runCommand.Flags().IntVar(&runMaxRetries, "max-retries", 2, "Retries per job after transient failures (0-5)")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the final logs as JSON")
	_ = runCommand.MarkFlagRequired("job")
	rootCmd.AddCommand(runCommand)
}

// parseUUIDs parses every value, naming the first malformed one.
func parseUUIDs(values []string, what string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", what, v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildStartRequest converts run flags into a workflow request.
func buildStartRequest(cmd *cobra.Command) (workflow.StartRequest, error) {
	jobIDs, err := parseUUIDs(runJobs, "job ID")
	if err != nil {
		return workflow.StartRequest{}, err
	}
	req := workflow.StartRequest{
		JobIDs:              jobIDs,
		SafeMode:            runSafeMode,
		RequireConfirmation: runRequireConfirmation,
		MaxRetries:          runMaxRetries,
	}
	if runMaxRetries < 0 || runMaxRetries > workflow.MaxRetriesLimit {
		return workflow.StartRequest{}, fmt.Errorf("--max-retries must be between 0 and %d", workflow.MaxRetriesLimit)
	}
	if cmd.Flags().Changed("min-score") {
		score := runMinScore
		req.MinScore = &score
	}
	if runResumeID != "" {
		id, err := uuid.Parse(runResumeID)
		if err != nil {
			return workflow.StartRequest{}, fmt.Errorf("invalid resume ID %q: %w", runResumeID, err)
		}
		req.ResumeID = &id
	}
	return req, nil
}

func runWorkflowCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := buildStartRequest(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx := logger.WithContext(context.Background(), log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.service.StartRun(ctx, req)
	if err != nil {
		return err
	}
	events, unsubscribe := a.broadcaster.Subscribe(run.ID)
	defer unsubscribe()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run %s queued with %d job(s)\n", run.ID, run.TotalJobs)

	done := make(chan error, 1)
	go func() { done <- a.service.Wait(context.Background()) }()

	var deadline <-chan time.Time
	for waiting := true; waiting; {
		select {
		case event, ok := <-events:
			if ok {
				printEvent(out, event)
			} else {
				events = nil
			}
		case <-sigCtx.Done():
			_, _ = fmt.Fprintln(out, "Stopping run...")
			if _, err := a.service.StopRun(ctx, run.ID); err != nil {
				log.Error("Failed to stop run", logger.Error(err))
			}
			stop()
			sigCtx = context.Background()
			deadline = time.After(stopTimeout)
		case <-deadline:
			return fmt.Errorf("run %s did not release the browser within %s", run.ID, stopTimeout)
		case err := <-done:
			if err != nil {
				return err
			}
			waiting = false
		}
	}

	final, err := a.service.GetRun(ctx, run.ID)
	if err != nil {
		return err
	}
	logs, err := a.service.ListLogs(ctx, run.ID)
	if err != nil {
		return err
	}
	if runJSON {
		return writeJSON(out, map[string]any{"run": final, "logs": logs})
	}
	printSummary(out, final, logs)
	return nil
}

func printEvent(w io.Writer, event workflow.ProgressEvent) {
	switch event.Kind {
	case workflow.EventStage:
		_, _ = fmt.Fprintf(w, "  [%s] %-9s %s\n", shortID(event.JobID), event.Stage, event.Message)
	case workflow.EventJob:
		_, _ = fmt.Fprintf(w, "  [%s] %s %s\n", shortID(event.JobID), event.Status, event.Message)
	case workflow.EventRun, workflow.EventComplete:
		_, _ = fmt.Fprintf(w, "Run %s: %s %s\n", event.Kind, event.Status, event.Message)
	}
}

func printSummary(w io.Writer, run *types.AutonomousRun, logs []types.AutonomousJobLog) {
	_, _ = fmt.Fprintf(w, "\nRun %s %s: %d processed, %d submitted, %d failed, %d skipped\n",
		run.ID, run.Status, run.ProcessedJobs, run.SubmittedJobs, run.FailedJobs, run.SkippedJobs)
	if run.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "Error: %s\n", run.ErrorMessage)
	}
	for _, l := range logs {
		_, _ = fmt.Fprintf(w, "  %2d. %s  %-9s %-9s attempts=%d  %s\n",
			l.Position+1, l.JobID, l.Stage, l.Status, l.Attempts, l.Message)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stopTimeout bounds how long the CLI waits for a stopped run to release
// the browser.
const stopTimeout = 2 * time.Minute
