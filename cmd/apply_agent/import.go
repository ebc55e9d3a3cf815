package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jonathan/apply-agent/internal/db"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
	"github.com/spf13/cobra"
)

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import the candidate profile, job postings or resumes from JSON files",
}

var importProfileCmd = &cobra.Command{
	Use:   "profile FILE",
	Short: "Create or update the candidate profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var profile types.CandidateProfile
		if err := readJSONFile(args[0], &profile); err != nil {
			return err
		}
		if strings.TrimSpace(profile.FullName) == "" || strings.TrimSpace(profile.Email) == "" {
			return fmt.Errorf("profile requires full_name and email")
		}
		return withDB(cmd, func(ctx context.Context, database *db.DB) error {
			if err := database.UpsertProfile(ctx, &profile); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s saved\n", profile.ID)
			return nil
		})
	},
}

var importJobsCmd = &cobra.Command{
	Use:   "jobs FILE",
	Short: "Upsert job postings from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var jobs []types.JobPosting
		if err := readJSONFile(args[0], &jobs); err != nil {
			return err
		}
		for i, j := range jobs {
			if err := validateJob(j); err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
		}
		return withDB(cmd, func(ctx context.Context, database *db.DB) error {
			for i := range jobs {
				if err := database.UpsertJob(ctx, &jobs[i]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s at %s\n", jobs[i].ID, jobs[i].Title, jobs[i].Company)
			}
			return nil
		})
	},
}

var importResumePrimary bool

var importResumeCmd = &cobra.Command{
	Use:   "resume FILE",
	Short: "Register a resume (file path plus optional parsed data)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resume types.Resume
		if err := readJSONFile(args[0], &resume); err != nil {
			return err
		}
		if resume.FilePath == "" {
			return fmt.Errorf("resume requires file_path")
		}
		if _, err := os.Stat(resume.FilePath); err != nil {
			return fmt.Errorf("resume file: %w", err)
		}
		if cmd.Flags().Changed("primary") {
			resume.IsPrimary = importResumePrimary
		}
		return withDB(cmd, func(ctx context.Context, database *db.DB) error {
			if err := database.CreateResume(ctx, &resume); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Resume %s saved (primary=%t)\n", resume.ID, resume.IsPrimary)
			return nil
		})
	},
}

func init() {
	importResumeCmd.Flags().BoolVar(&importResumePrimary, "primary", false, "Make this the primary resume")
	importCommand.AddCommand(importProfileCmd, importJobsCmd, importResumeCmd)
	rootCmd.AddCommand(importCommand)
}

func validateJob(j types.JobPosting) error {
	var missing []string
	if j.Source == "" {
		missing = append(missing, "source")
	}
	if j.ExternalID == "" {
		missing = append(missing, "external_id")
	}
	if j.Title == "" {
		missing = append(missing, "title")
	}
	if j.URL == "" {
		missing = append(missing, "url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// withDB loads config, connects, applies migrations and calls fn.
func withDB(cmd *cobra.Command, fn func(ctx context.Context, database *db.DB) error) error {
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
	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return fn(ctx, database)
}
