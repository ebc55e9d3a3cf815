// Package workflow runs autonomous application runs: each job is parsed,
// scored, resolved to its official apply target and submitted with retries,
// with every stage recorded on the run's job logs.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/resolve"
	"github.com/jonathan/apply-agent/internal/types"
)

// Run constraint keys stored on every run.
const (
	ConstraintOfficialOnly     = "official_submission_only"
	ConstraintNoDummyEmail     = "no_dummy_email_for_submission"
	ConstraintScrapeDummyEmail = "scrape_dummy_email_allowed"
)

// DefaultConstraints returns the constraints recorded on new runs.
func DefaultConstraints() map[string]any {
	return map[string]any{
		ConstraintOfficialOnly:     true,
		ConstraintNoDummyEmail:     true,
		ConstraintScrapeDummyEmail: true,
	}
}

// Job log messages.
const (
	MsgJobNotFound = "Skipped: job not found"
	MsgStopped     = "Stopped by user"
	MsgCompleted   = "Application workflow completed"
)

// RunParams are the settings of one run.
type RunParams struct {
	RunID               uuid.UUID
	JobIDs              []uuid.UUID
	ResumeID            *uuid.UUID
	MinScore            float64
	SafeMode            bool
	RequireConfirmation bool
	MaxRetries          int
}

// Options configures a Coordinator. Zero values use the defaults.
type Options struct {
	Scorer           *MatchScorer
	Classifier       *ReviewClassifier
	RetryBackoff     time.Duration
	TailoringEnabled bool
	OnProgress       ProgressCallback
}

// Coordinator executes runs one job at a time.
type Coordinator struct {
	store      Store
	resolver   Resolver
	submitter  Submitter
	parser     JobParser
	scorer     *MatchScorer
	forms      FormPreparer
	tracker    Tracker
	classifier ReviewClassifier
	backoff    time.Duration
	tailoring  bool
	onProgress ProgressCallback

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(store Store, resolver Resolver, submitter Submitter, opts Options) *Coordinator {
	c := &Coordinator{
		store:      store,
		resolver:   resolver,
		submitter:  submitter,
		scorer:     opts.Scorer,
		classifier: DefaultReviewClassifier(),
		backoff:    opts.RetryBackoff,
		tailoring:  opts.TailoringEnabled,
		onProgress: opts.OnProgress,
		now:        time.Now,
		sleep:      sleepContext,
	}
	if c.scorer == nil {
		c.scorer = &MatchScorer{}
	}
	if opts.Classifier != nil {
		c.classifier = *opts.Classifier
	}
	if c.backoff <= 0 {
		c.backoff = DefaultRetryBackoff
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type runConstraints struct {
	officialOnly bool
	noDummyEmail bool
}

func constraintsFrom(m map[string]any) runConstraints {
	return runConstraints{
		officialOnly: constraintFlag(m, ConstraintOfficialOnly),
		noDummyEmail: constraintFlag(m, ConstraintNoDummyEmail),
	}
}

// constraintFlag defaults to true; only an explicit false relaxes a constraint.
func constraintFlag(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return true
}

type jobContext struct {
	run         *types.AutonomousRun
	params      RunParams
	profile     *types.CandidateProfile
	resume      *types.Resume
	constraints runConstraints
	position    int
	jobID       uuid.UUID
}

type jobOutcome struct {
	status  types.JobLogStatus
	stopped bool
}

// Run executes the run identified by p.RunID to completion. Store failures
// and missing bootstrap data mark the run failed and are returned.
func (c *Coordinator) Run(ctx context.Context, p RunParams) error {
	log := logger.FromContext(ctx).With(logger.String("run_id", p.RunID.String()))
	ctx = logger.WithContext(ctx, log)

	run, err := c.store.GetRun(ctx, p.RunID)
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return &NotFoundError{Resource: "autonomous run", IDs: []uuid.UUID{p.RunID}}
	}
	if run.IsTerminal() {
		log.Info("Run already finished", logger.String("status", string(run.Status)))
		return nil
	}

	if err := c.execute(ctx, run, p); err != nil {
		log.Error("Autonomous run failed", logger.Error(err))
		if _, ferr := c.store.FinishRun(context.WithoutCancel(ctx), run.ID, types.RunFailed, err.Error(), c.now()); ferr != nil {
			log.Error("Failed to mark run failed", logger.Error(ferr))
		}
		c.emit(ProgressEvent{Kind: EventComplete, RunID: run.ID.String(), Status: string(types.RunFailed), Message: err.Error()})
		return err
	}
	return nil
}

func (c *Coordinator) execute(ctx context.Context, run *types.AutonomousRun, p RunParams) error {
	log := logger.FromContext(ctx)

	started := c.now()
	if err := c.store.MarkRunStarted(ctx, run.ID, len(p.JobIDs), started); err != nil {
		return fatal("failed to start run", err)
	}
	run.Status = types.RunRunning
	run.TotalJobs = len(p.JobIDs)
	run.StartedAt = &started
	log.Info("Autonomous run started", logger.Int("total_jobs", run.TotalJobs))
	c.emit(ProgressEvent{Kind: EventRun, RunID: run.ID.String(), Status: string(run.Status),
		Message: fmt.Sprintf("Processing %d jobs", run.TotalJobs)})

	profile, err := c.store.GetProfile(ctx)
	if err != nil {
		return fatal("failed to load candidate profile", err)
	}
	if profile == nil {
		return fatal("candidate profile not found", nil)
	}
	resume, err := c.loadResume(ctx, p.ResumeID)
	if err != nil {
		return err
	}

	constraints := constraintsFrom(run.Constraints)
	for i, jobID := range p.JobIDs {
		stopped, err := c.runStopped(ctx, run.ID)
		if err != nil {
			return fatal("failed to refresh run", err)
		}
		if stopped {
			log.Info("Run stopped, skipping remaining jobs", logger.Int("remaining", len(p.JobIDs)-i))
			c.emitStopped(run)
			return nil
		}

		out, err := c.processJob(ctx, &jobContext{
			run:         run,
			params:      p,
			profile:     profile,
			resume:      resume,
			constraints: constraints,
			position:    i,
			jobID:       jobID,
		})
		if err != nil {
			return err
		}
		countJob(run, out.status)
		if err := c.store.UpdateRunCounters(ctx, run); err != nil {
			return fatal("failed to update run counters", err)
		}
		if out.stopped {
			c.emitStopped(run)
			return nil
		}
	}

	finished, err := c.store.FinishRun(ctx, run.ID, types.RunCompleted, "", c.now())
	if err != nil {
		return fatal("failed to finish run", err)
	}
	status := types.RunCompleted
	if !finished {
		status = types.RunStopped
	}
	log.Info("Autonomous run finished",
		logger.String("status", string(status)),
		logger.Int("processed", run.ProcessedJobs),
		logger.Int("submitted", run.SubmittedJobs),
		logger.Int("skipped", run.SkippedJobs),
		logger.Int("failed", run.FailedJobs))
	c.emit(ProgressEvent{Kind: EventComplete, RunID: run.ID.String(), Status: string(status)})
	return nil
}

func (c *Coordinator) loadResume(ctx context.Context, id *uuid.UUID) (*types.Resume, error) {
	var (
		resume *types.Resume
		err    error
	)
	if id != nil {
		resume, err = c.store.GetResume(ctx, *id)
	} else {
		resume, err = c.store.GetPrimaryResume(ctx)
	}
	if err != nil {
		return nil, fatal("failed to load resume", err)
	}
	if resume == nil {
		return nil, fatal("resume not found", nil)
	}
	return resume, nil
}

// runStopped re-reads the run so stops from other requests are seen.
func (c *Coordinator) runStopped(ctx context.Context, id uuid.UUID) (bool, error) {
	run, err := c.store.GetRun(ctx, id)
	if err != nil {
		return false, err
	}
	return run == nil || run.IsTerminal(), nil
}

func (c *Coordinator) interrupt(runID uuid.UUID) func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		stopped, err := c.runStopped(ctx, runID)
		if err != nil || !stopped {
			return "", false
		}
		return StopReason(runID), true
	}
}

func (c *Coordinator) processJob(ctx context.Context, jc *jobContext) (jobOutcome, error) {
	log := logger.FromContext(ctx).With(logger.String("job_id", jc.jobID.String()))
	ctx = logger.WithContext(ctx, log)

	entry, err := c.store.UpsertLog(ctx, jc.run.ID, jc.jobID, jc.position)
	if err != nil {
		return jobOutcome{}, fatal("failed to create job log", err)
	}
	job, err := c.store.GetJob(ctx, jc.jobID)
	if err != nil {
		return jobOutcome{}, fatal("failed to load job", err)
	}
	if job == nil {
		return c.finishJob(ctx, entry, types.JobSkipped, MsgJobNotFound)
	}

	attrs := c.parser.Parse(ctx, job)
	if err := c.stage(ctx, entry, types.StageParse, "", map[string]any{"parsed": attrs.Map()}); err != nil {
		return jobOutcome{}, err
	}

	match := c.scorer.Score(ctx, job, jc.profile)
	matchDetails := match.Details()
	if err := c.store.UpdateJobMatch(ctx, job.ID, match.Overall, matchDetails); err != nil {
		return jobOutcome{}, fatal("failed to save match score", err)
	}
	if err := c.stage(ctx, entry, types.StageScore, "", map[string]any{"match": matchDetails}); err != nil {
		return jobOutcome{}, err
	}
	proceed := !match.Unscored && match.Overall >= jc.params.MinScore
	entry.Advance(types.StageDecision)
	if !proceed {
		return c.finishJob(ctx, entry, types.JobSkipped, scoreSkipMessage(match, jc.params.MinScore))
	}
	if err := c.stage(ctx, entry, types.StageDecision, "", map[string]any{
		"decision": map[string]any{"proceed": true, "min_score": jc.params.MinScore},
	}); err != nil {
		return jobOutcome{}, err
	}

	res := c.resolver.Resolve(ctx, job.TargetURL(), job.Source)
	var warning string
	if len(res.Warnings) > 0 {
		warning = "Apply target warning: " + strings.Join(res.Warnings, "; ")
	}
	if err := c.stage(ctx, entry, types.StageResolve, warning, map[string]any{
		"apply_target_resolution": res.Details(),
	}); err != nil {
		return jobOutcome{}, err
	}
	if !res.Resolved() {
		return c.finishJob(ctx, entry, types.JobSkipped, unresolvedMessage(res.Reason))
	}
	if res.ResolvedURL != job.ApplyURL {
		if err := c.store.UpdateJobApplyURL(ctx, job.ID, res.ResolvedURL); err != nil {
			return jobOutcome{}, fatal("failed to save apply url", err)
		}
		job.ApplyURL = res.ResolvedURL
	}

	if err := c.stage(ctx, entry, types.StageTailor, "", map[string]any{
		"tailoring": TailorPreview(jc.resume, job, c.tailoring),
	}); err != nil {
		return jobOutcome{}, err
	}
	if err := c.stage(ctx, entry, types.StageForm, "", map[string]any{
		"form_context": c.forms.Prepare(job, jc.profile),
	}); err != nil {
		return jobOutcome{}, err
	}

	app, err := c.store.GetOrCreateApplication(ctx, job.ID)
	if err != nil {
		return jobOutcome{}, fatal("failed to create application", err)
	}
	entry.ApplicationID = &app.ID
	if err := c.store.UpdateLog(ctx, entry); err != nil {
		return jobOutcome{}, fatal("failed to update job log", err)
	}

	return c.submit(ctx, jc, entry, job, app)
}

func (c *Coordinator) submit(ctx context.Context, jc *jobContext, entry *types.AutonomousJobLog, job *types.JobPosting, app *types.Application) (jobOutcome, error) {
	log := logger.FromContext(ctx)
	maxAttempts := jc.params.MaxRetries + 1

	var (
		submitted bool
		review    bool
		lastErr   string
	)
attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stopped, err := c.runStopped(ctx, jc.run.ID)
		if err != nil {
			return jobOutcome{}, fatal("failed to refresh run", err)
		}
		if stopped {
			out, err := c.finishJob(ctx, entry, types.JobSkipped, MsgStopped)
			out.stopped = true
			return out, err
		}

		entry.Attempts = attempt
		if err := c.stage(ctx, entry, types.StageSubmit, fmt.Sprintf("Submission attempt %d", attempt), nil); err != nil {
			return jobOutcome{}, err
		}

		current, err := c.store.GetApplication(ctx, app.ID)
		if err != nil {
			return jobOutcome{}, fatal("failed to reload application", err)
		}
		if current != nil {
			app = current
		}
		if app.Status == types.StatusSubmitted {
			log.Info("Application already submitted")
			submitted = true
			break
		}
		if app.Status.IsTerminal() {
			review = true
			lastErr = fmt.Sprintf("Application already %s", app.Status)
			break
		}
		// Persist in_progress before the attempt so RequestStop can reach it.
		app.Stop.Clear()
		app.Status = types.StatusInProgress
		app.ErrorMessage = ""
		if err := c.store.UpdateApplication(ctx, app); err != nil {
			return jobOutcome{}, fatal("failed to mark application in progress", err)
		}

		outcome := c.submitter.Run(ctx, apply.Attempt{
			Application:         app,
			Job:                 job,
			Profile:             jc.profile,
			Resume:              jc.resume,
			SafeMode:            jc.params.SafeMode,
			RequireConfirmation: jc.params.RequireConfirmation,
			OfficialOnly:        jc.constraints.officialOnly,
			NoDummyEmail:        jc.constraints.noDummyEmail,
			Interrupt:           c.interrupt(jc.run.ID),
		})
		if outcome.Status != types.StatusSubmitted {
			stopped, err := c.mergeStop(ctx, app)
			if err != nil {
				return jobOutcome{}, err
			}
			if stopped {
				outcome.Status = types.StatusReviewed
				outcome.Stopped = true
			}
		}
		if err := c.store.UpdateApplication(ctx, app); err != nil {
			return jobOutcome{}, fatal("failed to save application", err)
		}
		log.Info("Submission attempt finished",
			logger.Int("attempt", attempt),
			logger.String("state", string(outcome.State)),
			logger.String("note", app.Notes))

		switch outcome.Status {
		case types.StatusSubmitted:
			submitted = true
			break attempts
		case types.StatusReviewed:
			note := strings.TrimSpace(app.Notes)
			switch {
			case outcome.Stopped:
				review = true
				lastErr = orDefault(note, MsgStopped)
				break attempts
			case c.classifier.IsHardBlock(note) || apply.IsHardBlocker(outcome.Issue.Category):
				review = true
				lastErr = orDefault(note, "Application requires manual action before submit")
				break attempts
			case attempt < maxAttempts && c.classifier.IsRetryable(note):
				lastErr = note
			default:
				review = true
				lastErr = orDefault(note, "Application requires review before submit")
				break attempts
			}
		default:
			lastErr = orDefault(app.ErrorMessage, fmt.Sprintf("Application ended with status %s", app.Status))
		}

		if attempt < maxAttempts {
			log.Info("Retrying submission",
				logger.Int("attempt", attempt),
				logger.String("last_error", lastErr),
				logger.Duration("backoff", c.backoff))
			if err := c.sleep(ctx, c.backoff); err != nil {
				return jobOutcome{}, fatal("run interrupted", err)
			}
		}
	}

	entry.Advance(types.StageTrack)
	entry.Confirmation = c.tracker.Confirmation(app)
	if app.ResumeVersionID != nil {
		entry.ResumeVersionID = app.ResumeVersionID
	}
	c.saveLearning(ctx, jc.profile)

	switch {
	case submitted:
		return c.finishJob(ctx, entry, types.JobSubmitted, MsgCompleted)
	case review:
		return c.finishJob(ctx, entry, types.JobSkipped, lastErr)
	default:
		return c.finishJob(ctx, entry, types.JobFailed, orDefault(lastErr, "Application failed"))
	}
}

// mergeStop carries a stop written to the stored row during the attempt
// onto app, so the post-attempt save does not drop it.
func (c *Coordinator) mergeStop(ctx context.Context, app *types.Application) (bool, error) {
	if app.Stop.Requested {
		return false, nil
	}
	saved, err := c.store.GetApplication(ctx, app.ID)
	if err != nil {
		return false, fatal("failed to reload application", err)
	}
	if saved == nil || !saved.Stop.Requested {
		return false, nil
	}
	app.Stop = saved.Stop
	app.Status = types.StatusReviewed
	app.Notes = orDefault(strings.TrimSpace(saved.Notes), MsgStopped)
	app.ErrorMessage = ""
	app.AppendLog(c.now(), "Stop requested during attempt")
	return true, nil
}

func (c *Coordinator) saveLearning(ctx context.Context, profile *types.CandidateProfile) {
	if err := c.store.SaveLearning(ctx, profile.ID, profile.Learning); err != nil {
		logger.FromContext(ctx).Warn("Failed to save learning stats", logger.Error(err))
	}
}

// stage advances the log to s, merges details and persists it.
func (c *Coordinator) stage(ctx context.Context, entry *types.AutonomousJobLog, s types.Stage, message string, details map[string]any) error {
	entry.Advance(s)
	entry.Status = types.JobRunning
	if message != "" {
		entry.Message = message
	}
	entry.MergeDetails(details)
	if err := c.store.UpdateLog(ctx, entry); err != nil {
		return fatal(fmt.Sprintf("failed to record %s stage", s), err)
	}
	c.emit(ProgressEvent{
		Kind:    EventStage,
		RunID:   entry.RunID.String(),
		JobID:   entry.JobID.String(),
		Stage:   string(entry.Stage),
		Status:  string(entry.Status),
		Message: entry.Message,
	})
	return nil
}

func (c *Coordinator) finishJob(ctx context.Context, entry *types.AutonomousJobLog, status types.JobLogStatus, message string) (jobOutcome, error) {
	entry.Status = status
	entry.Message = message
	if err := c.store.UpdateLog(ctx, entry); err != nil {
		return jobOutcome{}, fatal("failed to update job log", err)
	}
	logger.FromContext(ctx).Info("Job finished",
		logger.String("stage", string(entry.Stage)),
		logger.String("status", string(status)),
		logger.String("message", message))
	c.emit(ProgressEvent{
		Kind:    EventJob,
		RunID:   entry.RunID.String(),
		JobID:   entry.JobID.String(),
		Stage:   string(entry.Stage),
		Status:  string(status),
		Message: message,
	})
	return jobOutcome{status: status}, nil
}

func (c *Coordinator) emitStopped(run *types.AutonomousRun) {
	c.emit(ProgressEvent{Kind: EventComplete, RunID: run.ID.String(), Status: string(types.RunStopped)})
}

func (c *Coordinator) emit(event ProgressEvent) {
	if c.onProgress != nil {
		c.onProgress(event)
	}
}

// countJob updates the run counters exactly once per processed job.
func countJob(run *types.AutonomousRun, status types.JobLogStatus) {
	run.ProcessedJobs++
	switch status {
	case types.JobSubmitted:
		run.SubmittedJobs++
	case types.JobSkipped:
		run.SkippedJobs++
	case types.JobFailed:
		run.FailedJobs++
	}
}

func scoreSkipMessage(match types.MatchResult, minScore float64) string {
	if match.Unscored {
		return fmt.Sprintf("Skipped: job could not be scored (%s)", orDefault(match.UnscoredReason, types.RecommendUnscored))
	}
	return fmt.Sprintf("Skipped: score %.1f below threshold %.1f", match.Overall, minScore)
}

func unresolvedMessage(reason resolve.Reason) string {
	switch reason {
	case resolve.ReasonChallengeBlocked:
		return "Skipped: board page blocked automation (anti-bot challenge). " +
			"Open the official apply page manually once and retry."
	case resolve.ReasonNoExternalLink:
		return "Skipped: no official external apply link found on board page."
	default:
		return fmt.Sprintf("Skipped: could not resolve official apply target (%s).", reason)
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
