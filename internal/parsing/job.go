package parsing

import (
	"strings"

	"github.com/jonathan/apply-agent/internal/types"
)

// requirementKeywords are the requirement tags surfaced on parsed job attributes.
var requirementKeywords = []string{"python", "sales", "customer success", "crm", "leadership", "sql", "aws"}

// JobAttributes is the structured view of a posting recorded on job logs.
type JobAttributes struct {
	Title         string   `json:"title"`
	Company       string   `json:"company"`
	Location      string   `json:"location"`
	Source        string   `json:"source"`
	WorkType      string   `json:"work_type,omitempty"`
	Remote        bool     `json:"remote"`
	YearsRequired *int     `json:"years_required,omitempty"`
	Requirements  []string `json:"requirements"`
	Keywords      []string `json:"keywords"`
}

// ParseJobAttributes extracts attributes from a posting without any network calls.
func ParseJobAttributes(job *types.JobPosting) JobAttributes {
	text := strings.ToLower(job.Description)
	reqs := make([]string, 0, len(requirementKeywords))
	for _, kw := range requirementKeywords {
		if strings.Contains(text, kw) {
			reqs = append(reqs, kw)
		}
	}

	attrs := JobAttributes{
		Title:        job.Title,
		Company:      job.Company,
		Location:     job.Location,
		Source:       job.Source,
		WorkType:     job.WorkType,
		Remote:       job.IsRemote(),
		Requirements: reqs,
		Keywords:     ExtractKeywords(job.Description, DefaultKeywordMinLength, 20),
	}
	if years, ok := ExtractYearsOfExperience(job.Description); ok {
		attrs.YearsRequired = &years
	}
	return attrs
}

// Map returns the attributes as a JSON-compatible map for log details.
func (a JobAttributes) Map() map[string]any {
	m := map[string]any{
		"title":        a.Title,
		"company":      a.Company,
		"location":     a.Location,
		"source":       a.Source,
		"work_type":    a.WorkType,
		"remote":       a.Remote,
		"requirements": a.Requirements,
		"keywords":     a.Keywords,
	}
	if a.YearsRequired != nil {
		m["years_required"] = *a.YearsRequired
	}
	return m
}
