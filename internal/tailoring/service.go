package tailoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/parsing"
	"github.com/jonathan/apply-agent/internal/rendering"
	"github.com/jonathan/apply-agent/internal/types"
)

// VersionStore persists tailored resume versions.
type VersionStore interface {
	CreateResumeVersion(ctx context.Context, v *types.ResumeVersion) error
}

// defaultBudget bounds LLM tailoring for one job.
const defaultBudget = 45 * time.Second

// Options configures a Service.
type Options struct {
	// Enabled turns on per-job tailoring in TailorForJob.
	Enabled bool
	// Budget bounds the LLM call in TailorForJob.
	Budget time.Duration
}

// Service tailors resumes and renders the result.
type Service struct {
	completer llm.Completer
	renderer  rendering.Renderer
	versions  VersionStore
	opts      Options
	now       func() time.Time
}

// NewService creates a Service. A nil completer behaves as llm.Unavailable().
func NewService(completer llm.Completer, renderer rendering.Renderer, versions VersionStore, opts Options) *Service {
	if completer == nil {
		completer = llm.Unavailable()
	}
	if opts.Budget <= 0 {
		opts.Budget = defaultBudget
	}
	return &Service{
		completer: completer,
		renderer:  renderer,
		versions:  versions,
		opts:      opts,
		now:       time.Now,
	}
}

// Artifact is the resume file to upload for one job.
type Artifact struct {
	Path string
	// Version is nil when the original resume is used.
	Version *types.ResumeVersion
}

// Enabled reports whether per-job tailoring is on.
func (s *Service) Enabled() bool {
	return s.opts.Enabled
}

// TailorForJob produces the resume file to upload for job. Every failure
// falls back to the original resume file. logf receives progress lines for
// the application's automation log and may be nil.
func (s *Service) TailorForJob(ctx context.Context, resume *types.Resume, job *types.JobPosting, logf func(string)) Artifact {
	if logf == nil {
		logf = func(string) {}
	}
	if resume == nil {
		return Artifact{}
	}
	original := Artifact{Path: resume.FilePath}
	if resume.ParsedData == nil {
		return original
	}
	if !s.opts.Enabled {
		logf("Resume tailoring disabled - uploading original resume.")
		return original
	}

	log := logger.FromContext(ctx).With(
		logger.String("resume_id", resume.ID.String()),
		logger.String("job_id", job.ID.String()))
	logf("Tailoring resume for this job...")

	result, model := s.tailorWithBudget(ctx, resume.ParsedData, job, logf)

	tailored := ApplySections(resume.ParsedData, result.ModifiedSections)
	baseName := fmt.Sprintf("tailored_%s_job_%s", resume.ID, job.ID)
	if s.renderer == nil {
		logf("Tailoring failed - uploading original resume.")
		log.Warn("No resume renderer configured, using original")
		return original
	}
	path, err := s.renderer.Render(ctx, tailored, baseName)
	if err != nil {
		logf("Tailoring failed - uploading original resume.")
		log.Warn("Resume tailoring failed, using original", logger.Error(err))
		return original
	}

	jobID := job.ID
	version := &types.ResumeVersion{
		ID:               uuid.New(),
		BaseResumeID:     resume.ID,
		JobID:            &jobID,
		FilePath:         path,
		TailoringNotes:   result.TailoringNotes,
		KeywordsAdded:    result.KeywordsAdded,
		SectionsModified: result.SectionsChanged,
		LLMModelUsed:     model,
		CreatedAt:        s.now().UTC(),
	}
	if s.versions != nil {
		if err := s.versions.CreateResumeVersion(ctx, version); err != nil {
			logf("Tailoring failed - uploading original resume.")
			log.Warn("Failed to save resume version, using original", logger.Error(err))
			return original
		}
	}

	preview := "skills reordered"
	if len(result.KeywordsAdded) > 0 {
		kw := result.KeywordsAdded
		if len(kw) > 5 {
			kw = kw[:5]
		}
		preview = strings.Join(kw, ", ")
	}
	logf(fmt.Sprintf("Tailored resume saved (version %s). [%s]", version.ID, preview))
	log.Info("Tailored resume saved",
		logger.String("version_id", version.ID.String()),
		logger.String("path", path),
		logger.Bool("used_llm", result.UsedLLM))
	return Artifact{Path: path, Version: version}
}

// tailorWithBudget runs the LLM path under the tailoring budget and falls back to keywords.
// It returns the result and the model name recorded on the version.
func (s *Service) tailorWithBudget(ctx context.Context, parsed *types.ParsedResume, job *types.JobPosting, logf func(string)) (types.TailoringResult, string) {
	if model := s.completer.Model(); model != "" {
		llmCtx, cancel := context.WithTimeout(ctx, s.opts.Budget)
		result, err := s.tailorWithLLM(llmCtx, parsed, job.Description, job.Title, job.Company)
		cancel()
		switch {
		case err == nil:
			logf("LLM tailoring succeeded.")
			return result, model
		case llm.KindOf(err) == llm.KindTimeout:
			logf("LLM tailoring timed out - keyword fallback.")
		default:
			logf(fmt.Sprintf("LLM tailoring error (%v) - keyword fallback.", err))
		}
	}

	keywords := parsing.ExtractKeywords(job.Description, parsing.DefaultKeywordMinLength, parsing.DefaultKeywordMaxCount)
	logf("Using keyword-only tailoring.")
	return TailorKeywordsOnly(parsed, keywords), "keyword-only"
}
