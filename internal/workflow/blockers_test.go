package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/types"
)

// blockedApp stores a reviewed application waiting on required inputs.
// The inputs are []any, the shape they have after a database round trip.
func blockedApp(f *fixture, job *types.JobPosting, required ...string) *types.Application {
	inputs := make([]any, len(required))
	for i, k := range required {
		inputs[i] = k
	}
	app := &types.Application{
		ID:           uuid.New(),
		JobID:        job.ID,
		Status:       types.StatusReviewed,
		Notes:        "Requires manual input",
		ErrorMessage: "Verification code required",
		UserInputs:   map[string]any{"city": "Bengaluru"},
		BlockerDetails: map[string]any{
			"category":             apply.IssueVerificationCode,
			"required_user_inputs": inputs,
		},
	}
	f.store.apps[app.ID] = app
	return app
}

func TestAnswerBlockers_SavesOverridesAndReportsPending(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	app := blockedApp(f, job, "verification_code", "expected_ctc")
	svc := newTestService(f)

	res, err := svc.AnswerBlockers(context.Background(), AnswerRequest{
		ApplicationID: app.ID,
		Answers: map[string]string{
			" Verification_Code ": " 482913 ",
			"notice_period":       "30 days",
			"referral":            "none",
			"  ":                  "ignored",
		},
		SaveToProfile: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"notice_period", "verification_code"}, res.SavedKeys)
	assert.Equal(t, []string{"notice_period"}, res.ProfileKeys)
	assert.Equal(t, []string{"expected_ctc"}, res.Pending)
	assert.Nil(t, res.RetryRun)

	saved, err := f.store.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, "482913", saved.UserInputs["verification_code"])
	assert.Equal(t, "Bengaluru", saved.UserInputs["city"])
	assert.NotContains(t, saved.UserInputs, "referral")
	assert.Empty(t, saved.ErrorMessage)
	assert.Equal(t, []string{"expected_ctc"}, saved.BlockerDetails[DetailPendingInputs])
	assert.Equal(t, "2026-03-02T10:00:00Z", saved.BlockerDetails[DetailLastAnswerUpdate])

	value, src := apply.NewAnswerer(f.store.profile, job, saved).Value(apply.FieldVerificationCode)
	assert.Equal(t, "482913", value)
	assert.Equal(t, apply.SourceApplication, src)

	assert.Equal(t, "30 days", f.store.profile.ApplicationAnswers["notice_period"])
	assert.NotContains(t, f.store.profile.ApplicationAnswers, "verification_code")

	events := f.store.issueEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.IssueResolved, events[0].EventType)
	assert.Equal(t, CategoryInputsProvided, events[0].Category)
	assert.Equal(t, app.ID, *events[0].ApplicationID)
	assert.Equal(t, "careers.acme.com", events[0].Domain)
	assert.Equal(t, "User provided blocker answers (notice_period, verification_code).", events[0].Message)
}

func TestAnswerBlockers_ProfileAnswersResolvePending(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.profile.ApplicationAnswers = map[string]any{"expected_ctc": "24 LPA"}
	app := blockedApp(f, job, "verification_code", "expected_ctc")
	svc := newTestService(f)

	res, err := svc.AnswerBlockers(context.Background(), AnswerRequest{
		ApplicationID: app.ID,
		Answers:       map[string]string{"verification_code": "482913"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Pending)
	assert.Empty(t, res.ProfileKeys)
}

func TestAnswerBlockers_Errors(t *testing.T) {
	job := backendJob()

	t.Run("no usable answers", func(t *testing.T) {
		f := newFixture(t, job)
		app := blockedApp(f, job, "verification_code")
		_, err := newTestService(f).AnswerBlockers(context.Background(), AnswerRequest{
			ApplicationID: app.ID,
			Answers:       map[string]string{"verification_code": "  ", "x": "null"},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "answers", verr.Field)
		assert.Empty(t, f.store.issueEvents())
	})

	t.Run("unknown application", func(t *testing.T) {
		f := newFixture(t, job)
		_, err := newTestService(f).AnswerBlockers(context.Background(), AnswerRequest{
			ApplicationID: uuid.New(),
			Answers:       map[string]string{"verification_code": "1"},
		})
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "application", nf.Resource)
	})

	t.Run("profile save failure", func(t *testing.T) {
		f := newFixture(t, job)
		app := blockedApp(f, job, "notice_period")
		f.store.errs["MergeAnswers"] = errors.New("connection refused")
		_, err := newTestService(f).AnswerBlockers(context.Background(), AnswerRequest{
			ApplicationID: app.ID,
			Answers:       map[string]string{"notice_period": "30 days"},
			SaveToProfile: true,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save profile answers")
		assert.NotContains(t, f.store.apps[app.ID].UserInputs, "notice_period")
	})

	t.Run("retry while a run is active", func(t *testing.T) {
		f := newFixture(t, job)
		app := blockedApp(f, job, "verification_code")
		_, err := newTestService(f).AnswerBlockers(context.Background(), AnswerRequest{
			ApplicationID: app.ID,
			Answers:       map[string]string{"verification_code": "482913"},
			RetryNow:      true,
		})
		require.ErrorIs(t, err, ErrActiveRun)
		assert.NotContains(t, f.store.apps[app.ID].UserInputs, "verification_code")
	})
}

func TestAnswerBlockers_RetryNowStartsRunWithAnswers(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	app := blockedApp(f, job, "verification_code")
	svc := newTestService(f)

	res, err := svc.AnswerBlockers(context.Background(), AnswerRequest{
		ApplicationID: app.ID,
		Answers:       map[string]string{"verification_code": "482913"},
		RetryNow:      true,
		SafeMode:      true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.RetryRun)
	waitForRuns(t, svc)

	assert.Equal(t, 0.0, res.RetryRun.MinScore)
	assert.True(t, res.RetryRun.SafeMode)
	require.Equal(t, 1, f.submitter.calls())
	attempt := f.submitter.Attempts[0]
	assert.Equal(t, app.ID, attempt.Application.ID)
	assert.Equal(t, "482913", attempt.Application.Overrides()["verification_code"])
	run := f.store.run(res.RetryRun.ID)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Equal(t, 1, run.SubmittedJobs)
}

func TestAnswerBlockers_RetryNowWaitsForPendingInputs(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	app := blockedApp(f, job, "verification_code", "expected_ctc")

	res, err := newTestService(f).AnswerBlockers(context.Background(), AnswerRequest{
		ApplicationID: app.ID,
		Answers:       map[string]string{"verification_code": "482913"},
		RetryNow:      true,
	})
	require.NoError(t, err)
	assert.Nil(t, res.RetryRun)
	assert.Equal(t, []string{"expected_ctc"}, res.Pending)
	assert.Zero(t, f.submitter.calls())
}

func TestCleanAnswers(t *testing.T) {
	got := CleanAnswers(map[string]string{
		" Postal_Code ": " 560001 ",
		"empty":         "",
		"nil":           "NULL",
		"__stop":        "true",
		"":              "x",
	})
	assert.Equal(t, map[string]string{"postal_code": "560001"}, got)
}

func TestProfileAnswers_KeepsOneTimeCodesOnApplication(t *testing.T) {
	got := ProfileAnswers(map[string]string{
		"verification_code": "1",
		"otp":               "2",
		"security_code":     "3",
		"notice_period":     "30 days",
	})
	assert.Equal(t, map[string]any{"notice_period": "30 days"}, got)
}

func TestRequiredInputs(t *testing.T) {
	tests := []struct {
		name    string
		details map[string]any
		want    []string
	}{
		{"nil details", nil, []string{}},
		{"string slice", map[string]any{"required_user_inputs": []string{"Postal_Code", "postal_code"}}, []string{"postal_code"}},
		{"decoded json", map[string]any{"required_user_inputs": []any{"otp", 7, " "}}, []string{"otp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredInputs(tt.details))
		})
	}
}
