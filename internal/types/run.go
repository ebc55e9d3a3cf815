package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state of an AutonomousRun.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunStopped   RunStatus = "stopped"
)

// AutonomousRun is one batch execution over a list of jobs.
type AutonomousRun struct {
	ID                  uuid.UUID      `json:"id"`
	Status              RunStatus      `json:"status"`
	ResumeID            uuid.UUID      `json:"resume_id"`
	TotalJobs           int            `json:"total_jobs"`
	ProcessedJobs       int            `json:"processed_jobs"`
	SubmittedJobs       int            `json:"submitted_jobs"`
	FailedJobs          int            `json:"failed_jobs"`
	SkippedJobs         int            `json:"skipped_jobs"`
	MinScore            float64        `json:"min_score"`
	SafeMode            bool           `json:"safe_mode"`
	RequireConfirmation bool           `json:"require_confirmation"`
	MaxRetries          int            `json:"max_retries"`
	Constraints         map[string]any `json:"constraints,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	StartedAt           *time.Time     `json:"started_at,omitempty"`
	FinishedAt          *time.Time     `json:"finished_at,omitempty"`
}

// IsActive reports whether the run is queued or running.
func (r *AutonomousRun) IsActive() bool {
	return r.Status == RunQueued || r.Status == RunRunning
}

// IsTerminal reports whether the run has finished in any way.
func (r *AutonomousRun) IsTerminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed || r.Status == RunStopped
}

// Stage is the furthest pipeline stage a job log has reached.
type Stage string

const (
	StageQueued   Stage = "queued"
	StageParse    Stage = "parse"
	StageScore    Stage = "score"
	StageDecision Stage = "decision"
	StageResolve  Stage = "resolve"
	StageTailor   Stage = "tailor"
	StageForm     Stage = "form"
	StageSubmit   Stage = "submit"
	StageTrack    Stage = "track"
)

var stageOrder = map[Stage]int{
	StageQueued:   0,
	StageParse:    1,
	StageScore:    2,
	StageDecision: 3,
	StageResolve:  4,
	StageTailor:   5,
	StageForm:     6,
	StageSubmit:   7,
	StageTrack:    8,
}

// Before reports whether s comes strictly before other in pipeline order.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// JobLogStatus is the status of one job within a run.
type JobLogStatus string

const (
	JobPending   JobLogStatus = "pending"
	JobRunning   JobLogStatus = "running"
	JobSubmitted JobLogStatus = "submitted"
	JobSkipped   JobLogStatus = "skipped"
	JobFailed    JobLogStatus = "failed"
)

// AutonomousJobLog records the progress of one job within a run.
type AutonomousJobLog struct {
	ID              uuid.UUID      `json:"id"`
	RunID           uuid.UUID      `json:"run_id"`
	JobID           uuid.UUID      `json:"job_id"`
	Position        int            `json:"position"`
	ApplicationID   *uuid.UUID     `json:"application_id,omitempty"`
	Stage           Stage          `json:"stage"`
	Status          JobLogStatus   `json:"status"`
	Attempts        int            `json:"attempts"`
	ResumeVersionID *uuid.UUID     `json:"resume_version_id,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
	Confirmation    map[string]any `json:"confirmation,omitempty"`
	Message         string         `json:"message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// MergeDetails adds entries to Details. Existing keys are overwritten by
// newer snapshots but never removed.
func (l *AutonomousJobLog) MergeDetails(entries map[string]any) {
	if len(entries) == 0 {
		return
	}
	if l.Details == nil {
		l.Details = make(map[string]any, len(entries))
	}
	for k, v := range entries {
		l.Details[k] = v
	}
}

// Advance moves the log to stage s. Stages never regress.
func (l *AutonomousJobLog) Advance(s Stage) {
	if l.Stage == "" || l.Stage.Before(s) {
		l.Stage = s
	}
}

// IssueEventType distinguishes newly detected blockers from resolved ones.
type IssueEventType string

const (
	IssueDetected IssueEventType = "detected"
	IssueResolved IssueEventType = "resolved"
)

// AutomationIssueEvent is an immutable record of an automation blocker.
type AutomationIssueEvent struct {
	ID                 uuid.UUID      `json:"id"`
	ApplicationID      *uuid.UUID     `json:"application_id,omitempty"`
	JobID              *uuid.UUID     `json:"job_id,omitempty"`
	Source             string         `json:"source,omitempty"`
	Domain             string         `json:"domain,omitempty"`
	Category           string         `json:"category"`
	EventType          IssueEventType `json:"event_type"`
	Message            string         `json:"message,omitempty"`
	RequiredInputs     []string       `json:"required_user_inputs"`
	SuggestedQuestions []string       `json:"suggested_questions"`
	CreatedAt          time.Time      `json:"created_at"`
}
