package types

import (
	"time"

	"github.com/google/uuid"
)

// Resume is an uploaded base resume.
type Resume struct {
	ID         uuid.UUID     `json:"id"`
	Name       string        `json:"name"`
	FilePath   string        `json:"file_path"`
	FileType   string        `json:"file_type,omitempty"`
	ParsedData *ParsedResume `json:"parsed_data,omitempty"`
	IsPrimary  bool          `json:"is_primary"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ResumeVersion is a job-specific tailored variant of a Resume.
type ResumeVersion struct {
	ID               uuid.UUID  `json:"id"`
	BaseResumeID     uuid.UUID  `json:"base_resume_id"`
	JobID            *uuid.UUID `json:"job_id,omitempty"`
	FilePath         string     `json:"file_path"`
	TailoringNotes   string     `json:"tailoring_notes,omitempty"`
	KeywordsAdded    []string   `json:"keywords_added,omitempty"`
	SectionsModified []string   `json:"sections_modified,omitempty"`
	LLMModelUsed     string     `json:"llm_model_used,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// ParsedResume is the structured content extracted from a resume file.
type ParsedResume struct {
	Name       string           `json:"name,omitempty"`
	Email      string           `json:"email,omitempty"`
	Phone      string           `json:"phone,omitempty"`
	Summary    string           `json:"summary,omitempty"`
	Skills     []string         `json:"skills,omitempty"`
	Experience []ResumePosition `json:"experience,omitempty"`
	Education  []EducationEntry `json:"education,omitempty"`
}

// ResumePosition is one role listed on a resume.
type ResumePosition struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Description string   `json:"description,omitempty"`
	Bullets     []string `json:"bullets,omitempty"`
}

// EducationEntry is one education record on a resume.
type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Clone returns a deep copy.
func (p *ParsedResume) Clone() *ParsedResume {
	if p == nil {
		return nil
	}
	out := *p
	out.Skills = append([]string(nil), p.Skills...)
	out.Experience = make([]ResumePosition, len(p.Experience))
	for i, e := range p.Experience {
		e.Bullets = append([]string(nil), e.Bullets...)
		out.Experience[i] = e
	}
	out.Education = append([]EducationEntry(nil), p.Education...)
	return &out
}
