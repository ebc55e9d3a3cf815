package apply

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/fetch"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/tailoring"
	"github.com/jonathan/apply-agent/internal/types"
)

// MaxNativeSteps bounds the number of screens walked in a native apply modal.
const MaxNativeSteps = 10

// DefaultStepDelay is the pause after clicks so the page can settle.
const DefaultStepDelay = 2 * time.Second

// Source modes returned by SourceMode.
const (
	ModeLinkedIn = "linkedin"
	ModeGeneric  = "generic"
)

// DefaultStopReason is the note used when a stop carries no reason.
const DefaultStopReason = "Stopped by user"

// Notes written when an attempt ends in review.
const (
	NoteReadyForSubmit   = "Ready for final submission - review in browser."
	NoteNoNextButton     = "No Next button - manual intervention needed"
	NoteNoFooter         = "No footer found - manual intervention needed"
	NoteNoEasyApply      = "Easy Apply button not found - manual intervention needed"
	NoteStepLimit        = "Step limit reached - manual intervention needed"
	NoteUnconfirmed      = "Submit clicked but no confirmation detected - verify in browser"
	NoteExternalReview   = "Filled external form; manual review required before final submit"
	NoteUnofficialTarget = "Target is not an official submission page - apply manually"
	NoteDummyEmail       = "Profile email looks like a placeholder - update it before submitting"
)

var (
	easyApplySelectors = []string{".jobs-apply-button--easy-apply", "button[aria-label*='Easy Apply']"}
	headingSelectors   = []string{"h3", "h2"}
	footerSelectors    = []string{".jobs-s-apply-footer", "footer"}
	submitSelectors    = []string{
		".jobs-s-apply-footer button[aria-label*='Submit application']",
		"footer button[aria-label*='Submit application']",
	}
	nextSelectors = []string{
		".jobs-s-apply-footer button[aria-label*='Next']",
		".jobs-s-apply-footer button[aria-label*='Review']",
		"footer button[aria-label*='Next']",
		"footer button[aria-label*='Review']",
	}
	resumeAttachedSelector = ".jobs-document-upload__container--selected"
	fileInputSelector      = "input[type='file']"
	formInputSelector      = "input[type='text'], input[type='tel'], input[type='email'], input[type='number'], input:not([type]), textarea, select"
)

// genericFields is the small fixed set filled on external career sites.
var genericFields = []struct {
	key    FieldKey
	tokens []string
}{
	{FieldFirstName, []string{"first_name", "firstname", "first-name", "first name"}},
	{FieldLastName, []string{"last_name", "lastname", "last-name", "last name"}},
	{FieldEmail, []string{"email"}},
	{FieldPhone, []string{"phone", "mobile"}},
	{FieldLinkedInURL, []string{"linkedin"}},
}

// Tailorer produces the resume file uploaded for a job.
type Tailorer interface {
	TailorForJob(ctx context.Context, resume *types.Resume, job *types.JobPosting, logf func(string)) tailoring.Artifact
}

// ApplicationStore re-reads applications for stop checks and persists
// the in-progress state before navigation.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	UpdateApplication(ctx context.Context, app *types.Application) error
}

// IssueRecorder stores automation issue events.
type IssueRecorder interface {
	RecordIssueEvent(ctx context.Context, event *types.AutomationIssueEvent) error
}

// TargetGuard decides whether a URL may receive a real submission.
type TargetGuard interface {
	IsOfficialSubmissionTarget(rawURL, source string) bool
}

// Deps are the collaborators of a Driver. Only Sessions is required.
type Deps struct {
	Sessions fetch.SessionFactory
	Tailor   Tailorer
	Apps     ApplicationStore
	Issues   IssueRecorder
	Guard    TargetGuard
}

// Config controls browser behavior.
type Config struct {
	Headless      bool
	StatePath     string
	StepDelay     time.Duration
	ActionTimeout time.Duration
	// ReviewHold keeps a headed browser open after a review outcome.
	ReviewHold time.Duration
}

// Driver walks a browser through an application form.
type Driver struct {
	deps  Deps
	cfg   Config
	now   func() time.Time
	pause func(ctx context.Context, d time.Duration) error
}

// NewDriver creates a Driver.
func NewDriver(deps Deps, cfg Config) *Driver {
	if cfg.StepDelay < 0 {
		cfg.StepDelay = 0
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = fetch.DefaultActionTimeout
	}
	return &Driver{
		deps:  deps,
		cfg:   cfg,
		now:   time.Now,
		pause: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Attempt is one submission attempt. Application and Profile are updated
// in place; the caller persists them.
type Attempt struct {
	Application         *types.Application
	Job                 *types.JobPosting
	Profile             *types.CandidateProfile
	Resume              *types.Resume
	SafeMode            bool
	RequireConfirmation bool
	// OfficialOnly refuses submission to non-official targets.
	OfficialOnly bool
	// NoDummyEmail refuses submission with a placeholder email.
	NoDummyEmail bool
	// Interrupt is consulted with every stop check, so a stopped run
	// halts the attempt even before its application is flagged.
	Interrupt func(ctx context.Context) (string, bool)
}

// Outcome is the result of Driver.Run.
type Outcome struct {
	State           State                   `json:"state"`
	Status          types.ApplicationStatus `json:"status"`
	Mode            string                  `json:"mode,omitempty"`
	Note            string                  `json:"note,omitempty"`
	Error           string                  `json:"error,omitempty"`
	Issue           Issue                   `json:"issue"`
	Stopped         bool                    `json:"stopped"`
	ResumePath      string                  `json:"resume_path,omitempty"`
	ResumeVersionID *uuid.UUID              `json:"resume_version_id,omitempty"`
	Filled          map[string]string       `json:"filled,omitempty"`
	Sources         map[string]string       `json:"sources,omitempty"`
}

// StopError aborts an attempt when a stop was requested.
type StopError struct {
	Reason string
}

func (e *StopError) Error() string {
	return "stop requested: " + e.Reason
}

// SourceMode infers where the job is applied from: linkedin when the source
// or target host is LinkedIn, generic otherwise.
func SourceMode(job *types.JobPosting) string {
	if job == nil {
		return ModeGeneric
	}
	host := types.HostOf(job.TargetURL())
	if strings.EqualFold(job.Source, ModeLinkedIn) || host == "linkedin.com" || strings.HasSuffix(host, ".linkedin.com") {
		return ModeLinkedIn
	}
	return ModeGeneric
}

// IsDummyEmail reports whether email is missing or an obvious placeholder.
func IsDummyEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return true
	}
	domain := email[at+1:]
	switch domain {
	case "example.com", "example.org", "example.net", "test.com", "email.com", "mailinator.com":
		return true
	}
	local := email[:at]
	return local == "test" || local == "noreply" || local == "no-reply" || local == "dummy"
}

// attempt carries the mutable state of one Run.
type attempt struct {
	Attempt
	session    fetch.Session
	machine    *machine
	answers    *Answerer
	resumePath string
	filled     map[string]string
	sources    map[string]string
	missing    []FieldKey
	uploaded   bool
	log        logger.Logger
}

// Run drives one application attempt to a terminal state. It never
// returns an error; failures are reported in the Outcome and on the
// Application.
func (d *Driver) Run(ctx context.Context, in Attempt) Outcome {
	app := in.Application
	if app == nil || in.Job == nil {
		return Outcome{State: StateFailed, Status: types.StatusFailed, Error: "application and job are required"}
	}
	if in.Profile == nil {
		in.Profile = &types.CandidateProfile{}
	}
	a := &attempt{
		Attempt: in,
		machine: newMachine(),
		answers: NewAnswerer(in.Profile, in.Job, app),
		filled:  make(map[string]string),
		sources: make(map[string]string),
		log: logger.FromContext(ctx).With(
			logger.String("application_id", app.ID.String()),
			logger.String("job_id", in.Job.ID.String())),
	}
	mode := SourceMode(in.Job)
	app.Status = types.StatusInProgress
	app.ErrorMessage = ""
	d.logf(a, "Automation started...")

	out := d.execute(ctx, a, mode)
	out.Mode = mode
	out.ResumePath = a.resumePath
	out.Filled = a.filled
	out.Sources = a.sources
	d.finalize(ctx, a, &out)
	return out
}

func (d *Driver) execute(ctx context.Context, a *attempt, mode string) Outcome {
	if reason, stop := d.stopRequested(ctx, a); stop {
		return d.end(a, stoppedOutcome(reason))
	}
	d.saveStarted(ctx, a)

	target := a.Job.TargetURL()
	if a.OfficialOnly && d.deps.Guard != nil && !d.deps.Guard.IsOfficialSubmissionTarget(target, a.Job.Source) {
		d.logf(a, "Refusing submission to "+target)
		return d.end(a, reviewOutcome(NoteUnofficialTarget))
	}
	if a.NoDummyEmail {
		if email, _ := a.answers.Value(FieldEmail); IsDummyEmail(email) {
			return d.end(a, reviewOutcome(NoteDummyEmail))
		}
	}

	d.prepareResume(ctx, a)

	opts := fetch.SessionOptions{Headless: d.cfg.Headless, Timeout: d.cfg.ActionTimeout}
	if mode == ModeLinkedIn {
		opts.StatePath = d.cfg.StatePath
	}
	session, err := d.deps.Sessions.Open(ctx, opts)
	if err != nil {
		return d.end(a, d.errorOutcome(a, fmt.Errorf("failed to open browser: %w", err)))
	}
	a.session = session
	defer d.closeSession(ctx, a, opts)

	if err := a.machine.transition(StateNavigating); err != nil {
		return d.end(a, d.errorOutcome(a, err))
	}
	d.logf(a, "Navigating to "+target)
	if err := session.Navigate(ctx, target); err != nil {
		return d.end(a, d.errorOutcome(a, err))
	}

	var out Outcome
	if mode == ModeLinkedIn && a.Job.IsEasyApply {
		if err := a.machine.transition(StateNativeFlow); err != nil {
			return d.end(a, d.errorOutcome(a, err))
		}
		out, err = d.nativeFlow(ctx, a)
	} else {
		if err := a.machine.transition(StateGenericFlow); err != nil {
			return d.end(a, d.errorOutcome(a, err))
		}
		out, err = d.genericFlow(ctx, a)
	}
	if err != nil {
		var stop *StopError
		if errors.As(err, &stop) {
			return d.end(a, stoppedOutcome(stop.Reason))
		}
		return d.end(a, d.errorOutcome(a, err))
	}
	return d.end(a, out)
}

// end moves the machine to the outcome's state. An illegal move downgrades
// the outcome to failed.
func (d *Driver) end(a *attempt, out Outcome) Outcome {
	if err := a.machine.transition(out.State); err != nil {
		a.log.Error("Driver state machine rejected outcome", logger.Error(err))
		out = Outcome{State: StateFailed, Error: err.Error()}
		a.machine.state = StateFailed
	}
	out.Status = StatusFor(out.State)
	return out
}

func (d *Driver) prepareResume(ctx context.Context, a *attempt) {
	if a.Resume == nil {
		d.logf(a, "No resume available - skipping upload.")
		return
	}
	if d.deps.Tailor == nil {
		a.resumePath = a.Resume.FilePath
		return
	}
	artifact := d.deps.Tailor.TailorForJob(ctx, a.Resume, a.Job, func(msg string) { d.logf(a, msg) })
	a.resumePath = artifact.Path
	if a.resumePath == "" {
		a.resumePath = a.Resume.FilePath
	}
	if artifact.Version != nil {
		id := artifact.Version.ID
		a.Application.ResumeVersionID = &id
	}
}

func (d *Driver) closeSession(ctx context.Context, a *attempt, opts fetch.SessionOptions) {
	if !d.cfg.Headless && d.cfg.ReviewHold > 0 && a.machine.state == StateReviewRequired {
		d.logf(a, fmt.Sprintf("Browser open %s for manual review.", d.cfg.ReviewHold))
		_ = d.pause(ctx, d.cfg.ReviewHold)
	}
	if opts.StatePath != "" {
		if err := a.session.SaveState(context.WithoutCancel(ctx), opts.StatePath); err != nil {
			a.log.Warn("Failed to save browser state", logger.Error(err))
		}
	}
	if err := a.session.Close(); err != nil {
		a.log.Warn("Failed to close browser session", logger.Error(err))
	}
}

// stopRequested re-reads the application so stops set by another request
// are seen mid-attempt.
func (d *Driver) stopRequested(ctx context.Context, a *attempt) (string, bool) {
	stop := a.Application.Stop
	if d.deps.Apps != nil {
		fresh, err := d.deps.Apps.GetApplication(ctx, a.Application.ID)
		switch {
		case err != nil:
			a.log.Warn("Stop check failed, using cached application", logger.Error(err))
		case fresh != nil:
			stop = fresh.Stop
			a.Application.Stop = fresh.Stop
		}
	}
	if !stop.Requested && a.Interrupt != nil {
		if reason, halt := a.Interrupt(ctx); halt {
			stop = types.StopSignal{Requested: true, Reason: reason}
		}
	}
	if !stop.Requested {
		return "", false
	}
	reason := strings.TrimSpace(stop.Reason)
	if reason == "" {
		reason = DefaultStopReason
	}
	return reason, true
}

// saveStarted persists the in_progress status and start log. It runs
// right after a stop check so a.Application carries the stored stop flag.
func (d *Driver) saveStarted(ctx context.Context, a *attempt) {
	if d.deps.Apps == nil {
		return
	}
	if err := d.deps.Apps.UpdateApplication(ctx, a.Application); err != nil {
		a.log.Warn("Failed to persist in-progress status", logger.Error(err))
	}
}

func (d *Driver) checkStop(ctx context.Context, a *attempt) error {
	if reason, stop := d.stopRequested(ctx, a); stop {
		return &StopError{Reason: reason}
	}
	return nil
}

func (d *Driver) nativeFlow(ctx context.Context, a *attempt) (Outcome, error) {
	s := a.session
	btn, ok, err := s.Find(ctx, easyApplySelectors...)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return reviewOutcome(NoteNoEasyApply), nil
	}
	if err := s.Click(ctx, btn); err != nil {
		return Outcome{}, fmt.Errorf("failed to open Easy Apply: %w", err)
	}
	if err := d.pause(ctx, d.cfg.StepDelay); err != nil {
		return Outcome{}, err
	}

	for step := 1; step <= MaxNativeSteps; step++ {
		if err := d.checkStop(ctx, a); err != nil {
			return Outcome{}, err
		}
		heading := d.heading(ctx, a)
		d.logf(a, fmt.Sprintf("Step %d: %s", step, heading))

		if err := d.fillInputs(ctx, a); err != nil {
			return Outcome{}, err
		}
		if strings.Contains(heading, "resume") {
			if err := d.uploadResume(ctx, a, true); err != nil {
				return Outcome{}, err
			}
		}

		if _, ok, err := s.Find(ctx, footerSelectors...); err != nil {
			return Outcome{}, err
		} else if !ok {
			return d.reviewWithPage(ctx, a, NoteNoFooter), nil
		}

		submit, ok, err := s.Find(ctx, submitSelectors...)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			if a.RequireConfirmation || a.SafeMode {
				d.logf(a, "Reached Submit screen. Please review and click Submit in browser.")
				return reviewOutcome(NoteReadyForSubmit), nil
			}
			if err := d.checkStop(ctx, a); err != nil {
				return Outcome{}, err
			}
			if err := s.Click(ctx, submit); err != nil {
				return Outcome{}, fmt.Errorf("failed to click submit: %w", err)
			}
			if err := d.pause(ctx, d.cfg.StepDelay); err != nil {
				return Outcome{}, err
			}
			text, err := s.PageText(ctx)
			if err != nil {
				return Outcome{}, err
			}
			if DetectSuccess(text) {
				d.logf(a, "Application submitted.")
				return Outcome{State: StateSubmitted, Note: "Submitted via Easy Apply"}, nil
			}
			return reviewOutcome(NoteUnconfirmed), nil
		}

		next, ok, err := s.Find(ctx, nextSelectors...)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			d.logf(a, "No Next button - check for missing required fields.")
			return d.reviewWithPage(ctx, a, NoteNoNextButton), nil
		}
		if err := s.Click(ctx, next); err != nil {
			return Outcome{}, fmt.Errorf("failed to advance step %d: %w", step, err)
		}
		if err := d.pause(ctx, d.cfg.StepDelay); err != nil {
			return Outcome{}, err
		}
	}
	return reviewOutcome(NoteStepLimit), nil
}

func (d *Driver) heading(ctx context.Context, a *attempt) string {
	el, ok, err := a.session.Find(ctx, headingSelectors...)
	if err != nil || !ok {
		return ""
	}
	text, err := a.session.ReadText(ctx, el)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(text))
}

// fillInputs fills every empty recognised input on the current screen.
// Individual field failures are logged and skipped.
func (d *Driver) fillInputs(ctx context.Context, a *attempt) error {
	inputs, err := a.session.FindAll(ctx, formInputSelector)
	if err != nil {
		return err
	}
	for _, el := range inputs {
		key, inputType := d.classifyInput(ctx, a, el)
		if key == FieldUnknown {
			continue
		}
		if current, err := a.session.Value(ctx, el); err == nil && strings.TrimSpace(current) != "" {
			continue
		}
		value, src := a.answers.Value(key)
		if value == "" {
			a.missing = append(a.missing, key)
			continue
		}
		if err := a.session.Fill(ctx, el, value); err != nil {
			a.log.Debug("Failed to fill input",
				logger.String("field", string(key)),
				logger.String("type", inputType),
				logger.Error(err))
			continue
		}
		a.filled[string(key)] = value
		a.sources[string(key)] = string(src)
	}
	return nil
}

func (d *Driver) classifyInput(ctx context.Context, a *attempt, el fetch.Element) (FieldKey, string) {
	attr := func(name string) string {
		v, _ := a.session.Attr(ctx, el, name)
		return v
	}
	id := attr("id")
	inputType := attr("type")
	parts := []string{attr("aria-label"), attr("placeholder"), attr("name"), id}
	if id != "" {
		if label, ok, err := a.session.Find(ctx, fmt.Sprintf("label[for='%s']", id)); err == nil && ok {
			if text, err := a.session.ReadText(ctx, label); err == nil {
				parts = append([]string{text}, parts...)
			}
		}
	}
	return KeyFromMeta(strings.Join(parts, " "), inputType), inputType
}

// uploadResume attaches the resume. When checkAttached is set, an already
// selected document is left in place.
func (d *Driver) uploadResume(ctx context.Context, a *attempt, checkAttached bool) error {
	if a.resumePath == "" || a.uploaded {
		return nil
	}
	if checkAttached {
		if _, ok, err := a.session.Find(ctx, resumeAttachedSelector); err == nil && ok {
			return nil
		}
	}
	input, ok, err := a.session.Find(ctx, fileInputSelector)
	if err != nil || !ok {
		return err
	}
	path, err := filepath.Abs(a.resumePath)
	if err != nil {
		path = a.resumePath
	}
	if err := a.session.UploadFile(ctx, input, path); err != nil {
		return fmt.Errorf("resume upload failed: %w", err)
	}
	a.uploaded = true
	d.logf(a, "Uploaded tailored resume: "+filepath.Base(path))
	return d.pause(ctx, d.cfg.StepDelay)
}

func (d *Driver) genericFlow(ctx context.Context, a *attempt) (Outcome, error) {
	d.logf(a, "Identifying form fields on external site...")
	s := a.session
	for _, f := range genericFields {
		value, src := a.answers.Value(f.key)
		if value == "" {
			continue
		}
		el, ok, err := s.Find(ctx, attributeSelectors(f.tokens)...)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			continue
		}
		if err := s.Fill(ctx, el, value); err != nil {
			a.log.Debug("Failed to fill input", logger.String("field", string(f.key)), logger.Error(err))
			continue
		}
		a.filled[string(f.key)] = value
		a.sources[string(f.key)] = string(src)
		d.logf(a, "Filled "+string(f.key))
	}
	if err := d.checkStop(ctx, a); err != nil {
		return Outcome{}, err
	}
	if err := d.uploadResume(ctx, a, false); err != nil {
		return Outcome{}, err
	}

	text, err := s.PageText(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if DetectSuccess(text) {
		d.logf(a, "Confirmation detected on page.")
		return Outcome{State: StateSubmitted, Note: "Confirmation detected on external site"}, nil
	}
	// Header "Sign in" links are not login blocks.
	if len(a.filled) == 0 {
		if issue := ClassifyIssue(text); issue.Category != IssueUnknown && issue.Category != IssueLogin {
			return Outcome{State: StateReviewRequired, Note: issue.Summary(), Issue: issue}, nil
		}
	}
	return reviewOutcome(NoteExternalReview), nil
}

func attributeSelectors(tokens []string) []string {
	out := make([]string, 0, len(tokens)*3)
	for _, tok := range tokens {
		out = append(out,
			fmt.Sprintf("input[name*='%s' i]", tok),
			fmt.Sprintf("input[id*='%s' i]", tok),
			fmt.Sprintf("input[aria-label*='%s' i]", tok))
	}
	return out
}

// reviewWithPage ends in review, attaching a classified issue when the
// page or unanswered fields explain the stall.
func (d *Driver) reviewWithPage(ctx context.Context, a *attempt, note string) Outcome {
	out := reviewOutcome(note)
	for _, key := range a.missing {
		if key == FieldVerificationCode {
			out.Issue = ClassifyIssue("verification code required")
			out.Note = out.Issue.Summary()
			return out
		}
	}
	if text, err := a.session.PageText(ctx); err == nil {
		if issue := ClassifyIssue(text); issue.Category != IssueUnknown && issue.Category != IssueLogin {
			issue.Message = note
			out.Issue = issue
		}
	}
	return out
}

// errorOutcome classifies a flow error: hard blockers need review,
// everything else fails.
func (d *Driver) errorOutcome(a *attempt, err error) Outcome {
	issue := ClassifyIssue(err.Error())
	a.log.Warn("Automation attempt failed",
		logger.String("category", issue.Category),
		logger.Error(err))
	d.logf(a, "Automation error: "+err.Error())
	if IsHardBlocker(issue.Category) {
		return Outcome{State: StateReviewRequired, Note: issue.Summary(), Issue: issue, Error: err.Error()}
	}
	out := Outcome{State: StateFailed, Error: err.Error()}
	if issue.Category != IssueUnknown {
		out.Issue = issue
	}
	return out
}

func reviewOutcome(note string) Outcome {
	return Outcome{State: StateReviewRequired, Note: note}
}

func stoppedOutcome(reason string) Outcome {
	return Outcome{State: StateReviewRequired, Note: reason, Stopped: true}
}

func (d *Driver) logf(a *attempt, msg string) {
	a.Application.AppendLog(d.now(), msg)
	a.log.Info(msg)
}

// finalize writes the outcome onto the application, records issue events
// and updates learning stats on the profile.
func (d *Driver) finalize(ctx context.Context, a *attempt, out *Outcome) {
	app := a.Application
	now := d.now().UTC()
	app.Status = out.Status
	out.ResumeVersionID = app.ResumeVersionID

	switch out.Status {
	case types.StatusSubmitted:
		app.AppliedAt = &now
		app.ErrorMessage = ""
		app.BlockerDetails = nil
	case types.StatusFailed:
		app.ErrorMessage = out.Error
	}
	if out.Note != "" {
		app.Notes = out.Note
	}
	if !out.Issue.IsZero() {
		app.BlockerDetails = out.Issue.Details()
	}
	d.logf(a, fmt.Sprintf("Automation finished: %s.", out.State))

	app.SubmissionAudit = map[string]any{
		"state":                string(out.State),
		"status":               string(out.Status),
		"source_mode":          out.Mode,
		"target_url":           a.Job.TargetURL(),
		"resume_path":          out.ResumePath,
		"filled_fields":        sortedKeys(out.Filled),
		"answer_sources":       copyStrings(out.Sources),
		"safe_mode":            a.SafeMode,
		"require_confirmation": a.RequireConfirmation,
		"stopped":              out.Stopped,
		"recorded_at":          now.Format(time.RFC3339),
	}

	if !out.Issue.IsZero() && d.deps.Issues != nil {
		appID, jobID := app.ID, a.Job.ID
		event := &types.AutomationIssueEvent{
			ID:                 uuid.New(),
			ApplicationID:      &appID,
			JobID:              &jobID,
			Source:             a.Job.Source,
			Domain:             a.Job.Domain(),
			Category:           out.Issue.Category,
			EventType:          types.IssueDetected,
			Message:            out.Issue.Message,
			RequiredInputs:     append([]string{}, out.Issue.RequiredInputs...),
			SuggestedQuestions: append([]string{}, out.Issue.Questions...),
			CreatedAt:          now,
		}
		if err := d.deps.Issues.RecordIssueEvent(ctx, event); err != nil {
			a.log.Warn("Failed to record issue event", logger.Error(err))
		}
	}

	learning := &a.Profile.Learning
	if out.Status == types.StatusSubmitted {
		for key, value := range out.Filled {
			learning.RecordFieldSuccess(key, value)
		}
	}
	if !out.Issue.IsZero() {
		learning.RecordBlocker(out.Issue.Category)
	}
	learning.RecordDomainOutcome(a.Job.Domain(), out.Status)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for _, k := range AllFieldKeys() {
		if _, ok := m[string(k)]; ok {
			keys = append(keys, string(k))
		}
	}
	return keys
}

func copyStrings(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
