package workflow

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
)

// CategoryInputsProvided is the issue category recorded when the user
// answers a blocker.
const CategoryInputsProvided = "user_inputs_provided"

// Blocker detail keys written by AnswerBlockers.
const (
	DetailPendingInputs    = "pending_required_inputs"
	DetailLastAnswerUpdate = "last_answer_update_at"
)

// maxEventKeys caps the answer keys named in a resolved issue message.
const maxEventKeys = 8

// oneTimeTokens mark answer keys that stay on the application.
var oneTimeTokens = []string{"otp", "verification", "pin", "two_factor", "2fa", "security_code"}

// AnswerRequest carries user answers for an application's blockers.
type AnswerRequest struct {
	ApplicationID       uuid.UUID
	Answers             map[string]string
	SaveToProfile       bool
	RetryNow            bool
	ResumeID            *uuid.UUID
	SafeMode            bool
	RequireConfirmation bool
}

// AnswerResult reports what AnswerBlockers saved and what is still missing.
type AnswerResult struct {
	ApplicationID uuid.UUID            `json:"application_id"`
	SavedKeys     []string             `json:"saved_answer_keys"`
	ProfileKeys   []string             `json:"profile_answer_keys"`
	Pending       []string             `json:"pending_required_inputs"`
	RetryRun      *types.AutonomousRun `json:"retry_run,omitempty"`
}

// AnswerBlockers stores answers as application overrides, optionally copies
// reusable ones into the profile, records a resolved issue event and
// reports the required inputs that are still unanswered. With RetryNow and
// nothing pending it starts a one-job run for the application.
func (s *Service) AnswerBlockers(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	answers := CleanAnswers(req.Answers)
	if len(answers) == 0 && !req.RetryNow {
		return nil, &ValidationError{Field: "answers", Message: "no valid answers provided"}
	}

	app, err := s.store.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, &NotFoundError{Resource: "application", IDs: []uuid.UUID{req.ApplicationID}}
	}
	if req.RetryNow {
		active, err := s.store.FindActiveRun(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check active run: %w", err)
		}
		if active != nil {
			return nil, &ActiveRunError{RunID: active.ID, Status: string(active.Status)}
		}
	}
	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	profile, err := s.store.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	log := logger.FromContext(ctx).With(logger.String("application_id", app.ID.String()))
	now := s.now()

	inputs := make(map[string]any, len(app.UserInputs)+len(answers))
	maps.Copy(inputs, app.UserInputs)
	for k, v := range answers {
		inputs[k] = v
	}
	app.UserInputs = inputs

	result := &AnswerResult{
		ApplicationID: app.ID,
		SavedKeys:     slices.Sorted(maps.Keys(answers)),
		ProfileKeys:   []string{},
	}

	if req.SaveToProfile && profile != nil {
		shared := ProfileAnswers(answers)
		if len(shared) > 0 {
			if err := s.store.MergeAnswers(ctx, profile.ID, shared); err != nil {
				return nil, fmt.Errorf("failed to save profile answers: %w", err)
			}
			merged := make(map[string]any, len(profile.ApplicationAnswers)+len(shared))
			maps.Copy(merged, profile.ApplicationAnswers)
			maps.Copy(merged, shared)
			profile.ApplicationAnswers = merged
			result.ProfileKeys = slices.Sorted(maps.Keys(shared))
		}
	}

	result.Pending = PendingInputs(profile, job, app)
	details := make(map[string]any, len(app.BlockerDetails)+2)
	maps.Copy(details, app.BlockerDetails)
	details[DetailPendingInputs] = result.Pending
	details[DetailLastAnswerUpdate] = now.UTC().Format(time.RFC3339)
	app.BlockerDetails = details
	app.ErrorMessage = ""

	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save application answers: %w", err)
	}

	if len(answers) > 0 {
		s.recordResolved(ctx, log, app, job, result.SavedKeys)
	}

	log.Info("Blocker answers saved",
		logger.String("keys", strings.Join(result.SavedKeys, ",")),
		logger.Int("pending", len(result.Pending)),
		logger.Bool("retry_now", req.RetryNow))

	if req.RetryNow && len(result.Pending) == 0 {
		minScore := 0.0
		run, err := s.StartRun(ctx, StartRequest{
			JobIDs:              []uuid.UUID{app.JobID},
			ResumeID:            req.ResumeID,
			MinScore:            &minScore,
			SafeMode:            req.SafeMode,
			RequireConfirmation: req.RequireConfirmation,
		})
		if err != nil {
			return nil, err
		}
		result.RetryRun = run
	}
	return result, nil
}

func (s *Service) recordResolved(ctx context.Context, log logger.Logger, app *types.Application, job *types.JobPosting, keys []string) {
	appID, jobID := app.ID, app.JobID
	named := keys[:min(len(keys), maxEventKeys)]
	event := &types.AutomationIssueEvent{
		ID:                 uuid.New(),
		ApplicationID:      &appID,
		JobID:              &jobID,
		Category:           CategoryInputsProvided,
		EventType:          types.IssueResolved,
		Message:            fmt.Sprintf("User provided blocker answers (%s).", strings.Join(named, ", ")),
		RequiredInputs:     []string{},
		SuggestedQuestions: []string{},
		CreatedAt:          s.now(),
	}
	if job != nil {
		event.Source = strings.ToLower(job.Source)
		event.Domain = job.Domain()
	}
	if err := s.store.RecordIssueEvent(ctx, event); err != nil {
		log.Warn("Failed to record resolved issue event", logger.Error(err))
	}
}

// CleanAnswers lower-cases and trims keys and trims values. Empty keys and
// empty, "null" or "none" values are dropped.
func CleanAnswers(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		value := strings.TrimSpace(v)
		if key == "" || strings.HasPrefix(key, "__") {
			continue
		}
		switch strings.ToLower(value) {
		case "", "null", "none":
			continue
		}
		out[key] = value
	}
	return out
}

// ProfileAnswers returns the answers worth reusing across applications.
// One-time codes are left out.
func ProfileAnswers(answers map[string]string) map[string]any {
	out := make(map[string]any, len(answers))
	for k, v := range answers {
		if isOneTimeKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isOneTimeKey(key string) bool {
	for _, token := range oneTimeTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

// PendingInputs lists the blocker's required inputs that still have no
// real answer. Generated placeholders do not count as answers.
func PendingInputs(profile *types.CandidateProfile, job *types.JobPosting, app *types.Application) []string {
	answers := apply.NewAnswerer(profile, job, app)
	pending := []string{}
	for _, key := range RequiredInputs(app.BlockerDetails) {
		value, src := answers.Value(apply.FieldKey(key))
		if strings.TrimSpace(value) == "" || src == apply.SourcePlaceholder {
			pending = append(pending, key)
		}
	}
	return pending
}

// RequiredInputs reads the required input keys from blocker details. The
// list is []string in memory and []any once loaded from JSON.
func RequiredInputs(details map[string]any) []string {
	var keys []string
	switch v := details["required_user_inputs"].(type) {
	case []string:
		keys = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				keys = append(keys, s)
			}
		}
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
