package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/fetch"
	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/parsing"
	"github.com/jonathan/apply-agent/internal/ranking"
	"github.com/jonathan/apply-agent/internal/resolve"
	"github.com/jonathan/apply-agent/internal/types"
)

// JobParser turns a stored posting into the attributes recorded at the
// parse stage.
type JobParser struct{}

// Parse returns the posting's attributes. A posting that only carries HTML
// has its plain-text description filled in first so later stages score the
// same text.
func (JobParser) Parse(ctx context.Context, job *types.JobPosting) parsing.JobAttributes {
	if strings.TrimSpace(job.Description) == "" && strings.TrimSpace(job.DescriptionHTML) != "" {
		platform := fetch.DetectPlatform(job.TargetURL())
		text, err := fetch.ExtractMainText(job.DescriptionHTML,
			fetch.PlatformContentSelectors(platform),
			fetch.PlatformNoiseSelectors(platform)...)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to extract description text",
				logger.String("job_id", job.ID.String()),
				logger.Error(err))
		} else {
			job.Description = text
		}
	}
	return parsing.ParseJobAttributes(job)
}

// MatchScorer scores a posting against the candidate profile. With a
// completer set and Deep on, one LLM call may refine the keyword score.
type MatchScorer struct {
	Completer llm.Completer
	Deep      bool
}

// Score returns the match result. Missing or empty profiles come back
// unscored.
func (m *MatchScorer) Score(ctx context.Context, job *types.JobPosting, profile *types.CandidateProfile) types.MatchResult {
	if m != nil && m.Deep && m.Completer != nil {
		return ranking.ScoreDeep(ctx, job, profile, m.Completer)
	}
	return ranking.Score(job, profile)
}

// Resolver finds the official apply target for a posting.
type Resolver interface {
	Resolve(ctx context.Context, target, source string) resolve.Resolution
}

// Tailoring preview statuses recorded at the tailor stage.
const (
	TailorNoResume         = "no_resume"
	TailorOriginalFallback = "original_fallback"
	TailorReady            = "ready"
)

// TailorPreview describes what the tailor stage will upload for a job
// without calling the LLM. Actual tailoring happens inside the submission.
func TailorPreview(resume *types.Resume, job *types.JobPosting, enabled bool) map[string]any {
	if resume == nil {
		return map[string]any{"status": TailorNoResume}
	}
	status := TailorReady
	if !enabled || resume.ParsedData == nil {
		status = TailorOriginalFallback
	}
	return map[string]any{
		"status":            status,
		"resume_id":         resume.ID.String(),
		"has_parsed_data":   resume.ParsedData != nil,
		"tailoring_enabled": enabled,
		"job_title":         job.Title,
	}
}

// FormPreparer builds the form context snapshot: which identity fields are
// available and which answers will be used for the common questions.
type FormPreparer struct{}

// Prepare returns the form_context details for job.
func (FormPreparer) Prepare(job *types.JobPosting, profile *types.CandidateProfile) map[string]any {
	identity := map[string]any{
		"full_name": false,
		"email":     false,
		"phone":     false,
	}
	realIdentity := false
	if profile != nil {
		identity["full_name"] = strings.TrimSpace(profile.FullName) != ""
		identity["email"] = strings.TrimSpace(profile.Email) != "" && !apply.IsDummyEmail(profile.Email)
		identity["phone"] = strings.TrimSpace(profile.Phone) != ""
		realIdentity = identity["full_name"].(bool) && identity["email"].(bool)
	}

	values, sources := apply.NewAnswerer(profile, job, nil).RuntimeOverrides()
	return map[string]any{
		"source":             job.Source,
		"apply_url":          job.TargetURL(),
		"source_mode":        apply.SourceMode(job),
		"uses_real_identity": realIdentity,
		"identity_fields":    identity,
		"answers":            values,
		"answer_sources":     sources,
	}
}

// Submitter runs one submission attempt. *apply.Driver implements it.
type Submitter interface {
	Run(ctx context.Context, attempt apply.Attempt) apply.Outcome
}

// Tracker snapshots the application after the last attempt.
type Tracker struct{}

// Confirmation returns the track stage snapshot stored on the job log.
func (Tracker) Confirmation(app *types.Application) map[string]any {
	c := map[string]any{
		"application_id":    app.ID.String(),
		"status":            string(app.Status),
		"applied_at":        nil,
		"notes":             app.Notes,
		"error_message":     app.ErrorMessage,
		"resume_version_id": nil,
		"submission_audit":  app.SubmissionAudit,
		"updated_at":        nil,
	}
	if app.AppliedAt != nil {
		c["applied_at"] = app.AppliedAt.UTC().Format(time.RFC3339)
	}
	if app.ResumeVersionID != nil {
		c["resume_version_id"] = app.ResumeVersionID.String()
	}
	if app.UpdatedAt != nil {
		c["updated_at"] = app.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return c
}
