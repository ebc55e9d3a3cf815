package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/apply"
	"github.com/jonathan/apply-agent/internal/types"
)

func newTestService(f *fixture) *Service {
	svc := NewService(f.store, f.coord, ServiceConfig{})
	svc.now = func() time.Time { return testNow }
	return svc
}

func waitForRuns(t *testing.T, svc *Service) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Wait(ctx))
}

func TestStartRun_Validation(t *testing.T) {
	tooMany := make([]uuid.UUID, MaxJobsPerRun+1)
	for i := range tooMany {
		tooMany[i] = uuid.New()
	}
	badScore := 150.0

	tests := []struct {
		name  string
		req   StartRequest
		field string
	}{
		{name: "no jobs", req: StartRequest{}, field: "job_ids"},
		{name: "too many jobs", req: StartRequest{JobIDs: tooMany}, field: "job_ids"},
		{name: "min score out of range", req: StartRequest{JobIDs: []uuid.UUID{uuid.New()}, MinScore: &badScore}, field: "min_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := newTestService(f)

			run, err := svc.StartRun(context.Background(), tt.req)

			assert.Nil(t, run)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestStartRun_RejectsSecondActiveRun(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	svc := newTestService(f)

	_, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID}})

	require.ErrorIs(t, err, ErrActiveRun)
	var active *ActiveRunError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, f.runID, active.RunID)
	assert.Equal(t, "queued", active.Status)
}

func TestStartRun_ResumeChecks(t *testing.T) {
	job := backendJob()

	t.Run("unknown resume id", func(t *testing.T) {
		f := newFixture(t, job)
		f.store.setRunStatus(f.runID, types.RunCompleted)
		svc := newTestService(f)
		missing := uuid.New()

		_, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID}, ResumeID: &missing})

		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "resume", nf.Resource)
	})

	t.Run("no resume uploaded", func(t *testing.T) {
		f := newFixture(t, job)
		f.store.setRunStatus(f.runID, types.RunCompleted)
		f.store.resumes = map[uuid.UUID]*types.Resume{}
		svc := newTestService(f)

		_, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID}})

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "resume_id", verr.Field)
	})
}

func TestStartRun_MissingJobs(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	svc := newTestService(f)
	missing := uuid.New()

	_, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID, missing}})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []uuid.UUID{missing}, nf.IDs)
}

func TestStartRun_CreatesAndExecutesRun(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	svc := newTestService(f)
	minScore := 0.0

	run, err := svc.StartRun(context.Background(), StartRequest{
		JobIDs:     []uuid.UUID{job.ID, job.ID},
		MinScore:   &minScore,
		SafeMode:   true,
		MaxRetries: 9,
	})
	require.NoError(t, err)
	waitForRuns(t, svc)

	assert.Equal(t, types.RunQueued, run.Status)
	assert.Equal(t, 1, run.TotalJobs)
	assert.Equal(t, MaxRetriesLimit, run.MaxRetries)
	assert.Equal(t, f.resume.ID, run.ResumeID)
	assert.Equal(t, true, run.Constraints[ConstraintOfficialOnly])
	assert.Equal(t, true, run.Constraints[ConstraintNoDummyEmail])
	assert.Equal(t, true, run.Constraints[ConstraintScrapeDummyEmail])

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, stored.Status)
	assert.Equal(t, 1, stored.SubmittedJobs)

	logs, err := svc.ListLogs(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, types.JobSubmitted, logs[0].Status)
	assert.Equal(t, job.ID.String(), logs[0].Details["job_id"])

	require.Equal(t, 1, f.submitter.calls())
	assert.True(t, f.submitter.Attempts[0].SafeMode)
}

func TestStartRun_DefaultMinScore(t *testing.T) {
	job := backendJob()
	job.Title = "Account Executive"
	job.Description = "Outbound sales. Cold calling."
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	svc := newTestService(f)

	run, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID}})
	require.NoError(t, err)
	waitForRuns(t, svc)

	assert.Equal(t, DefaultMinScore, run.MinScore)
	logs, err := svc.ListLogs(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobSkipped, logs[0].Status)
	assert.Zero(t, f.submitter.calls())
}

func TestStopRun_FlagsInFlightApplications(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunRunning)
	inFlight := &types.Application{ID: uuid.New(), JobID: job.ID, Status: types.StatusInProgress}
	done := &types.Application{ID: uuid.New(), JobID: uuid.New(), Status: types.StatusSubmitted}
	f.store.apps[inFlight.ID] = inFlight
	f.store.apps[done.ID] = done
	f.store.logs[f.runID] = []*types.AutonomousJobLog{
		{ID: uuid.New(), RunID: f.runID, JobID: inFlight.JobID, ApplicationID: &inFlight.ID},
		{ID: uuid.New(), RunID: f.runID, JobID: done.JobID, ApplicationID: &done.ID, Position: 1},
	}
	svc := newTestService(f)

	run, err := svc.StopRun(context.Background(), f.runID)
	require.NoError(t, err)

	assert.Equal(t, types.RunStopped, run.Status)
	require.NotNil(t, run.FinishedAt)

	stopped := f.store.apps[inFlight.ID]
	assert.Equal(t, types.StatusReviewed, stopped.Status)
	assert.True(t, stopped.Stop.Requested)
	assert.Equal(t, StopReason(f.runID), stopped.Stop.Reason)
	assert.Equal(t, StopNote, stopped.Notes)
	assert.Equal(t, types.StatusSubmitted, f.store.apps[done.ID].Status)
}

func TestStopRun_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	svc := newTestService(f)

	run, err := svc.StopRun(context.Background(), f.runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)

	run, err = svc.StopRun(context.Background(), f.runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunCompleted, run.Status)
	assert.Zero(t, f.store.stopRequests)
}

func TestStopRun_DuringSubmission(t *testing.T) {
	job := backendJob()
	f := newFixture(t, job)
	f.store.setRunStatus(f.runID, types.RunCompleted)
	svc := newTestService(f)

	var runID uuid.UUID
	ready := make(chan struct{})
	f.submitter.RunFunc = func(ctx context.Context, a apply.Attempt) apply.Outcome {
		<-ready
		_, err := svc.StopRun(ctx, runID)
		assert.NoError(t, err)
		reason, halt := a.Interrupt(ctx)
		assert.True(t, halt)
		out := reviewWith(a, reason, apply.Issue{})
		out.Stopped = true
		return out
	}
	minScore := 0.0

	run, err := svc.StartRun(context.Background(), StartRequest{JobIDs: []uuid.UUID{job.ID}, MinScore: &minScore})
	require.NoError(t, err)
	runID = run.ID
	close(ready)
	waitForRuns(t, svc)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStopped, stored.Status)
	logs, err := svc.ListLogs(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobSkipped, logs[0].Status)
	assert.NotEqual(t, types.StatusSubmitted, f.store.apps[*logs[0].ApplicationID].Status)
}

func TestGetRun_NotFound(t *testing.T) {
	svc := newTestService(newFixture(t))

	_, err := svc.GetRun(context.Background(), uuid.New())
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = svc.ListLogs(context.Background(), uuid.New())
	assert.ErrorAs(t, err, &nf)
}

func TestGetActiveRun(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f)

	active, err := svc.GetActiveRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, f.runID, active.ID)

	f.store.setRunStatus(f.runID, types.RunFailed)
	active, err = svc.GetActiveRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGetRun_StoreError(t *testing.T) {
	f := newFixture(t)
	f.store.errs["GetRun"] = errors.New("pool closed")
	svc := newTestService(f)

	_, err := svc.GetRun(context.Background(), f.runID)
	require.Error(t, err)
	var nf *NotFoundError
	assert.False(t, errors.As(err, &nf))
}
