package types

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkType values as stored on job postings.
const (
	WorkTypeRemote = "remote"
	WorkTypeHybrid = "hybrid"
	WorkTypeOnsite = "onsite"
)

// JobPosting is a scraped or ingested job listing.
type JobPosting struct {
	ID              uuid.UUID      `json:"id"`
	ExternalID      string         `json:"external_id"`
	Source          string         `json:"source"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location,omitempty"`
	WorkType        string         `json:"work_type,omitempty"`
	Description     string         `json:"description,omitempty"`
	DescriptionHTML string         `json:"description_html,omitempty"`
	URL             string         `json:"url"`
	ApplyURL        string         `json:"apply_url,omitempty"`
	IsEasyApply     bool           `json:"is_easy_apply"`
	MatchScore      *float64       `json:"match_score,omitempty"`
	MatchDetails    map[string]any `json:"match_details,omitempty"`
	Archived        bool           `json:"archived"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       *time.Time     `json:"updated_at,omitempty"`
}

// TargetURL returns the apply URL, falling back to the canonical URL.
func (j *JobPosting) TargetURL() string {
	if strings.TrimSpace(j.ApplyURL) != "" {
		return j.ApplyURL
	}
	return j.URL
}

// IsRemote reports whether the posting is remote by work type or location text.
func (j *JobPosting) IsRemote() bool {
	return strings.EqualFold(j.WorkType, WorkTypeRemote) ||
		strings.Contains(strings.ToLower(j.Location), "remote")
}

// Domain returns the lowercased host of the job's target URL without a www. prefix.
func (j *JobPosting) Domain() string {
	return HostOf(j.TargetURL())
}

// HostOf returns the lowercased host of rawURL without a www. prefix, or "".
func HostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
