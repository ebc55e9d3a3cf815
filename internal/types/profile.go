// Package types provides type definitions for structured data used throughout the apply agent.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// LearningKey is the reserved key under application_answers that stores learning stats.
const LearningKey = "__learning"

// CandidateProfile is the single canonical candidate profile for an install.
type CandidateProfile struct {
	ID                 uuid.UUID         `json:"id"`
	FullName           string            `json:"full_name"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone,omitempty"`
	Location           string            `json:"location,omitempty"`
	LinkedInURL        string            `json:"linkedin_url,omitempty"`
	Headline           string            `json:"headline,omitempty"`
	Summary            string            `json:"summary,omitempty"`
	Skills             []string          `json:"skills"`
	TargetRoles        []string          `json:"target_roles"`
	TargetLocations    []string          `json:"target_locations"`
	Experience         []ExperienceEntry `json:"experience"`
	CurrentCTC         string            `json:"current_ctc,omitempty"`
	ExpectedCTC        string            `json:"expected_ctc,omitempty"`
	NoticePeriod       string            `json:"notice_period,omitempty"`
	CanJoinImmediately *bool             `json:"can_join_immediately,omitempty"`
	WorkAuthorization  string            `json:"work_authorization,omitempty"`
	NeedsSponsorship   *bool             `json:"needs_sponsorship,omitempty"`

	// ApplicationAnswers holds free-form answer overrides keyed by field key.
	// The reserved LearningKey is never present here; see Learning.
	ApplicationAnswers map[string]any `json:"application_answers,omitempty"`
	Learning           LearningStats  `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ExperienceEntry is one position in a candidate's work history.
type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// IsEmpty reports whether the profile carries nothing a scorer could use.
func (p *CandidateProfile) IsEmpty() bool {
	return len(p.Skills) == 0 &&
		len(p.TargetRoles) == 0 &&
		len(p.Experience) == 0 &&
		strings.TrimSpace(p.Summary) == ""
}

// FirstName returns the first whitespace-separated token of FullName.
func (p *CandidateProfile) FirstName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns the last token of FullName, or "" for single-token names.
func (p *CandidateProfile) LastName() string {
	parts := strings.Fields(p.FullName)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// AnswersBlob returns the persisted application_answers shape, with learning
// stats nested under LearningKey.
func (p *CandidateProfile) AnswersBlob() map[string]any {
	blob := make(map[string]any, len(p.ApplicationAnswers)+1)
	for k, v := range p.ApplicationAnswers {
		if k == LearningKey {
			continue
		}
		blob[k] = v
	}
	if !p.Learning.IsZero() {
		blob[LearningKey] = p.Learning.ToMap()
	}
	return blob
}

// LoadAnswersBlob splits a persisted application_answers blob into
// ApplicationAnswers and Learning.
func (p *CandidateProfile) LoadAnswersBlob(blob map[string]any) {
	p.ApplicationAnswers = make(map[string]any, len(blob))
	p.Learning = LearningStats{}
	for k, v := range blob {
		if k == LearningKey {
			if m, ok := v.(map[string]any); ok {
				p.Learning = LearningFromMap(m)
			}
			continue
		}
		p.ApplicationAnswers[k] = v
	}
}
