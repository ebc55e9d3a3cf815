package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus is the state of an Application.
type ApplicationStatus string

const (
	StatusQueued     ApplicationStatus = "queued"
	StatusInProgress ApplicationStatus = "in_progress"
	StatusSubmitted  ApplicationStatus = "submitted"
	StatusFailed     ApplicationStatus = "failed"
	StatusReviewed   ApplicationStatus = "reviewed"
	StatusInterview  ApplicationStatus = "interview"
	StatusRejected   ApplicationStatus = "rejected"
	StatusOffer      ApplicationStatus = "offer"
	StatusWithdrawn  ApplicationStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusSubmitted, StatusFailed, StatusReviewed,
		StatusInterview, StatusRejected, StatusOffer, StatusWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether automation has finished with the application.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusSubmitted, StatusInterview, StatusRejected, StatusOffer, StatusWithdrawn:
		return true
	}
	return false
}

// automationTransitions lists the moves automation may make on its own.
var automationTransitions = map[ApplicationStatus][]ApplicationStatus{
	StatusQueued:     {StatusInProgress},
	StatusReviewed:   {StatusInProgress},
	StatusFailed:     {StatusInProgress},
	StatusInProgress: {StatusSubmitted, StatusFailed, StatusReviewed},
}

// CanTransition reports whether from -> to is allowed. Interview, rejected,
// offer and withdrawn are reachable only by manual update.
func CanTransition(from, to ApplicationStatus, byAutomation bool) bool {
	if !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range automationTransitions[from] {
		if next == to {
			return true
		}
	}
	if byAutomation {
		return false
	}
	return from.Valid()
}

// Reserved user_inputs keys that carry typed sub-structures.
const (
	StopRequestedKey   = "__stop_requested"
	StopRequestedAtKey = "__stop_requested_at"
	StopReasonKey      = "__stop_reason"
	SubmissionAuditKey = "__submission_audit"
)

// StopSignal is the per-application stop request set by run control.
type StopSignal struct {
	Requested   bool       `json:"requested"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

// Request marks the signal as set.
func (s *StopSignal) Request(reason string, now time.Time) {
	t := now.UTC()
	s.Requested = true
	s.RequestedAt = &t
	s.Reason = reason
}

// Clear resets the signal.
func (s *StopSignal) Clear() {
	*s = StopSignal{}
}

// Application tracks one automated or manual application to a job.
// There is at most one Application per job.
type Application struct {
	ID              uuid.UUID         `json:"id"`
	JobID           uuid.UUID         `json:"job_id"`
	Status          ApplicationStatus `json:"status"`
	ResumeVersionID *uuid.UUID        `json:"resume_version_id,omitempty"`
	AutomationLog   string            `json:"automation_log,omitempty"`
	Notes           string            `json:"notes,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	BlockerDetails  map[string]any    `json:"blocker_details,omitempty"`

	// UserInputs holds answer overrides keyed by field key. Reserved keys
	// are lifted into Stop and SubmissionAudit on load.
	UserInputs      map[string]any `json:"user_inputs,omitempty"`
	Stop            StopSignal     `json:"-"`
	SubmissionAudit map[string]any `json:"-"`

	AppliedAt *time.Time `json:"applied_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// AppendLog appends a timestamped line to the automation log.
func (a *Application) AppendLog(now time.Time, msg string) {
	line := "[" + now.UTC().Format("15:04:05") + "] " + msg
	if a.AutomationLog == "" {
		a.AutomationLog = line
		return
	}
	a.AutomationLog += "\n" + line
}

// Overrides returns the answer overrides without reserved keys.
func (a *Application) Overrides() map[string]any {
	out := make(map[string]any, len(a.UserInputs))
	for k, v := range a.UserInputs {
		if strings.HasPrefix(k, "__") {
			continue
		}
		out[k] = v
	}
	return out
}

// InputsBlob returns the persisted user_inputs shape, with the stop signal
// and submission audit stored under their reserved keys.
func (a *Application) InputsBlob() map[string]any {
	blob := make(map[string]any, len(a.UserInputs)+4)
	for k, v := range a.UserInputs {
		switch k {
		case StopRequestedKey, StopRequestedAtKey, StopReasonKey, SubmissionAuditKey:
			continue
		}
		blob[k] = v
	}
	if a.Stop.Requested {
		blob[StopRequestedKey] = true
		if a.Stop.RequestedAt != nil {
			blob[StopRequestedAtKey] = a.Stop.RequestedAt.Format(time.RFC3339)
		}
		if a.Stop.Reason != "" {
			blob[StopReasonKey] = a.Stop.Reason
		}
	}
	if len(a.SubmissionAudit) > 0 {
		blob[SubmissionAuditKey] = a.SubmissionAudit
	}
	return blob
}

// LoadInputsBlob splits a persisted user_inputs blob into overrides,
// stop signal and submission audit.
func (a *Application) LoadInputsBlob(blob map[string]any) {
	a.UserInputs = make(map[string]any, len(blob))
	a.Stop = StopSignal{}
	a.SubmissionAudit = nil
	for k, v := range blob {
		switch k {
		case StopRequestedKey:
			a.Stop.Requested, _ = v.(bool)
		case StopRequestedAtKey:
			if s, ok := v.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					a.Stop.RequestedAt = &t
				}
			}
		case StopReasonKey:
			a.Stop.Reason, _ = v.(string)
		case SubmissionAuditKey:
			a.SubmissionAudit, _ = v.(map[string]any)
		default:
			a.UserInputs[k] = v
		}
	}
	if !a.Stop.Requested {
		a.Stop = StopSignal{}
	}
}
