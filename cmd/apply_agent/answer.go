package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/workflow"
	"github.com/spf13/cobra"
)

var answerCommand = &cobra.Command{
	Use:   "answer <application-id>",
	Short: "Answer the inputs an application is blocked on",
	Long: `Saves answers as overrides on one application, reports the required inputs that are
still missing and, with --retry-now, starts a one-job run once nothing is pending.
One-time codes (OTP, verification and security codes) are never copied to the profile.

  apply_agent answer 3f1c... --set verification_code=482913 --set notice_period="30 days" --save-to-profile`,
	Args: cobra.ExactArgs(1),
	RunE: answerBlockersCmd,
}

var (
	answerSet                 []string
	answerSaveToProfile       bool
	answerRetryNow            bool
	answerResumeID            string
	answerSafeMode            bool
	answerRequireConfirmation bool
	answerJSON                bool
)

func init() {
	answerCommand.Flags().StringArrayVarP(&answerSet, "set", "s", nil, "Answer as key=value (repeatable)")
	answerCommand.Flags().BoolVar(&answerSaveToProfile, "save-to-profile", false, "Also store reusable answers on the candidate profile")
	answerCommand.Flags().BoolVar(&answerRetryNow, "retry-now", false, "Retry the application when no required input is pending")
	answerCommand.Flags().StringVar(&answerResumeID, "resume", "", "Resume ID for the retry (defaults to the primary resume)")
	answerCommand.Flags().BoolVar(&answerSafeMode, "safe-mode", false, "Never submit during the retry")
	answerCommand.Flags().BoolVar(&answerRequireConfirmation, "require-confirmation", false, "Stop before the final submit click during the retry")
	answerCommand.Flags().BoolVar(&answerJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(answerCommand)
}

// parseAnswers splits key=value pairs. Values may contain '='.
func parseAnswers(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid answer %q: want key=value", p)
		}
		out[key] = value
	}
	return out, nil
}

// buildAnswerRequest converts the answer arguments and flags into a
// workflow request.
func buildAnswerRequest(args []string) (workflow.AnswerRequest, error) {
	appID, err := uuid.Parse(args[0])
	if err != nil {
		return workflow.AnswerRequest{}, fmt.Errorf("invalid application ID %q: %w", args[0], err)
	}
	answers, err := parseAnswers(answerSet)
	if err != nil {
		return workflow.AnswerRequest{}, err
	}
	if len(answers) == 0 && !answerRetryNow {
		return workflow.AnswerRequest{}, fmt.Errorf("at least one --set key=value is required without --retry-now")
	}
	req := workflow.AnswerRequest{
		ApplicationID:       appID,
		Answers:             answers,
		SaveToProfile:       answerSaveToProfile,
		RetryNow:            answerRetryNow,
		SafeMode:            answerSafeMode,
		RequireConfirmation: answerRequireConfirmation,
	}
	if answerResumeID != "" {
		id, err := uuid.Parse(answerResumeID)
		if err != nil {
			return workflow.AnswerRequest{}, fmt.Errorf("invalid resume ID %q: %w", answerResumeID, err)
		}
		req.ResumeID = &id
	}
	return req, nil
}

func answerBlockersCmd(cmd *cobra.Command, args []string) error {
	req, err := buildAnswerRequest(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithContext(context.Background(), log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.AnswerBlockers(ctx, req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if result.RetryRun == nil {
		if answerJSON {
			return writeJSON(out, result)
		}
		printAnswerResult(out, result)
		return nil
	}
	if !answerJSON {
		printAnswerResult(out, result)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := result.RetryRun.ID
	if err := a.service.Wait(sigCtx); err != nil {
		_, _ = fmt.Fprintln(out, "Stopping run...")
		if _, err := a.service.StopRun(ctx, runID); err != nil {
			log.Error("Failed to stop run", logger.Error(err))
		}
		a.drain(stopTimeout)
	}

	final, err := a.service.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	logs, err := a.service.ListLogs(ctx, runID)
	if err != nil {
		return err
	}
	if answerJSON {
		return writeJSON(out, map[string]any{"answers": result, "run": final, "logs": logs})
	}
	printSummary(out, final, logs)
	return nil
}

func printAnswerResult(w io.Writer, r *workflow.AnswerResult) {
	if len(r.SavedKeys) > 0 {
		_, _ = fmt.Fprintf(w, "Saved answers for application %s: %s\n", r.ApplicationID, strings.Join(r.SavedKeys, ", "))
	}
	if len(r.ProfileKeys) > 0 {
		_, _ = fmt.Fprintf(w, "Copied to profile: %s\n", strings.Join(r.ProfileKeys, ", "))
	}
	if len(r.Pending) > 0 {
		_, _ = fmt.Fprintf(w, "Still needed: %s\n", strings.Join(r.Pending, ", "))
	} else {
		_, _ = fmt.Fprintln(w, "All required inputs answered")
	}
	if r.RetryRun != nil {
		_, _ = fmt.Fprintf(w, "Retry run %s queued\n", r.RetryRun.ID)
	}
}
