package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/apply-agent/internal/types"
)

// Getters in these interfaces return (nil, nil) when the row does not exist.

// ProfileStore reads and updates the canonical candidate profile.
type ProfileStore interface {
	GetProfile(ctx context.Context) (*types.CandidateProfile, error)
	SaveLearning(ctx context.Context, profileID uuid.UUID, stats types.LearningStats) error
	// MergeAnswers upserts answers into application_answers, leaving
	// other keys and the learning stats untouched.
	MergeAnswers(ctx context.Context, profileID uuid.UUID, answers map[string]any) error
}

// JobStore reads job postings and records scoring and resolution results.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*types.JobPosting, error)
	ExistingJobIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	UpdateJobMatch(ctx context.Context, id uuid.UUID, score float64, details map[string]any) error
	UpdateJobApplyURL(ctx context.Context, id uuid.UUID, applyURL string) error
}

// ApplicationStore persists applications. There is at most one per job.
type ApplicationStore interface {
	GetOrCreateApplication(ctx context.Context, jobID uuid.UUID) (*types.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)
	UpdateApplication(ctx context.Context, app *types.Application) error
	// RequestStop flags queued and in-progress applications among ids,
	// moves them to reviewed with note and returns how many were changed.
	RequestStop(ctx context.Context, ids []uuid.UUID, reason, note string, at time.Time) (int, error)
}

// RunStore persists autonomous runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *types.AutonomousRun, logs []*types.AutonomousJobLog) error
	GetRun(ctx context.Context, id uuid.UUID) (*types.AutonomousRun, error)
	FindActiveRun(ctx context.Context) (*types.AutonomousRun, error)
	MarkRunStarted(ctx context.Context, id uuid.UUID, totalJobs int, at time.Time) error
	UpdateRunCounters(ctx context.Context, run *types.AutonomousRun) error
	// FinishRun sets a terminal status only while the run is still active
	// and reports whether it did.
	FinishRun(ctx context.Context, id uuid.UUID, status types.RunStatus, errMsg string, at time.Time) (bool, error)
}

// LogStore persists per-job run logs.
type LogStore interface {
	UpsertLog(ctx context.Context, runID, jobID uuid.UUID, position int) (*types.AutonomousJobLog, error)
	UpdateLog(ctx context.Context, log *types.AutonomousJobLog) error
	ListLogs(ctx context.Context, runID uuid.UUID) ([]types.AutonomousJobLog, error)
	RunApplicationIDs(ctx context.Context, runID uuid.UUID) ([]uuid.UUID, error)
}

// IssueStore records automation issue events.
type IssueStore interface {
	RecordIssueEvent(ctx context.Context, event *types.AutomationIssueEvent) error
}

// ResumeStore reads resumes and stores tailored versions.
type ResumeStore interface {
	GetResume(ctx context.Context, id uuid.UUID) (*types.Resume, error)
	GetPrimaryResume(ctx context.Context) (*types.Resume, error)
	CreateResumeVersion(ctx context.Context, v *types.ResumeVersion) error
}

// Store is everything the coordinator persists through.
type Store interface {
	ProfileStore
	JobStore
	ApplicationStore
	RunStore
	LogStore
	IssueStore
	ResumeStore
}
