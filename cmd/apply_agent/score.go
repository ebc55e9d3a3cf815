package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jonathan/apply-agent/internal/db"
	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/jonathan/apply-agent/internal/workflow"
	"github.com/spf13/cobra"
)

var scoreCommand = &cobra.Command{
	Use:   "score JOB_ID...",
	Short: "Score stored jobs against the candidate profile",
	Long: `Computes the match score of each job against the stored candidate profile without
starting a run. With --deep the score is augmented by the LLM when GEMINI_API_KEY is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScoreCmd,
}

var (
	scoreDeep bool
	scoreSave bool
	scoreJSON bool
)

func init() {
	scoreCommand.Flags().BoolVar(&scoreDeep, "deep", false, "Augment the rule-based score with the LLM")
	scoreCommand.Flags().BoolVar(&scoreSave, "save", false, "Persist the score on the job posting")
	scoreCommand.Flags().BoolVar(&scoreJSON, "json", false, "Print results as JSON")
	rootCmd.AddCommand(scoreCommand)
}

func runScoreCmd(cmd *cobra.Command, args []string) error {
	jobIDs, err := parseUUIDs(args, "job ID")
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or database_url config is required")
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	ctx := logger.WithContext(context.Background(), log)

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	profile, err := database.GetProfile(ctx)
	if err != nil {
		return err
	}
	if profile == nil {
		return fmt.Errorf("no candidate profile stored; run 'apply_agent import profile' first")
	}

	scorer := &workflow.MatchScorer{Deep: scoreDeep}
	if scoreDeep {
		if cfg.APIKey == "" {
			return fmt.Errorf("--deep requires GEMINI_API_KEY")
		}
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		defer func() { _ = client.Close() }()
		scorer.Completer = llm.NewCompleter(client, llm.TierLite, cfg.TailoringBudgetDuration())
	}

	results := make([]scoredJob, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := database.GetJob(ctx, id)
		if err != nil {
			return err
		}
		if job == nil {
			return fmt.Errorf("job not found: %s", id)
		}
		match := scorer.Score(ctx, job, profile)
		if scoreSave {
			if err := database.UpdateJobMatch(ctx, job.ID, match.Overall, match.Details()); err != nil {
				return err
			}
		}
		results = append(results, scoredJob{Job: job, Match: match})
	}

	out := cmd.OutOrStdout()
	if scoreJSON {
		return writeJSON(out, results)
	}
	printScores(out, results)
	return nil
}

type scoredJob struct {
	Job   *types.JobPosting `json:"job"`
	Match types.MatchResult `json:"match"`
}

func printScores(w io.Writer, results []scoredJob) {
	for _, r := range results {
		score := fmt.Sprintf("%5.1f", r.Match.Overall)
		if r.Match.Unscored {
			score = "  n/a"
		}
		_, _ = fmt.Fprintf(w, "%s  %-12s %s at %s\n", score, r.Match.Recommendation, r.Job.Title, r.Job.Company)
		if r.Match.Explanation != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Match.Explanation)
		}
		if len(r.Match.MissingSkills) > 0 {
			_, _ = fmt.Fprintf(w, "       missing: %v\n", r.Match.MissingSkills)
		}
	}
}
