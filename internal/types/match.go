package types

// Recommendation buckets for a match result.
const (
	RecommendStrong   = "strong_match"
	RecommendGood     = "good_match"
	RecommendWeak     = "weak_match"
	RecommendPoor     = "poor_match"
	RecommendUnscored = "unscored"
)

// Reasons a match could not be scored.
const (
	UnscoredProfileMissing = "profile_missing"
	UnscoredProfileEmpty   = "profile_empty"
)

// MatchResult is the relevance score of a job against a candidate profile.
// Component scores are in [0, 100].
type MatchResult struct {
	Overall        float64  `json:"overall_score"`
	Skill          float64  `json:"skill_score"`
	Title          float64  `json:"title_score"`
	Experience     float64  `json:"experience_score"`
	Location       float64  `json:"location_score"`
	Keyword        float64  `json:"keyword_score"`
	MatchedSkills  []string `json:"matched_skills"`
	MissingSkills  []string `json:"missing_skills"`
	Keywords       []string `json:"extracted_keywords,omitempty"`
	Recommendation string   `json:"recommendation"`
	Explanation    string   `json:"explanation"`
	Unscored       bool     `json:"unscored,omitempty"`
	UnscoredReason string   `json:"unscored_reason,omitempty"`
	LLMAugmented   bool     `json:"llm_augmented,omitempty"`
}

// Details returns the result as a JSON-compatible map for match_details blobs.
func (m *MatchResult) Details() map[string]any {
	d := map[string]any{
		"overall_score":    m.Overall,
		"skill_score":      m.Skill,
		"title_score":      m.Title,
		"experience_score": m.Experience,
		"location_score":   m.Location,
		"keyword_score":    m.Keyword,
		"matched_skills":   nonNil(m.MatchedSkills),
		"missing_skills":   nonNil(m.MissingSkills),
		"keywords":         nonNil(m.Keywords),
		"recommendation":   m.Recommendation,
		"explanation":      m.Explanation,
	}
	if m.Unscored {
		d["unscored"] = true
		d["unscored_reason"] = m.UnscoredReason
	}
	if m.LLMAugmented {
		d["llm_augmented"] = true
	}
	return d
}

// TailoringResult is the outcome of tailoring a resume to a job.
type TailoringResult struct {
	ModifiedSections map[string]any `json:"modified_sections"`
	KeywordsAdded    []string       `json:"keywords_added"`
	SectionsChanged  []string       `json:"sections_changed"`
	TailoringNotes   string         `json:"tailoring_notes"`
	ConfidenceScore  float64        `json:"confidence_score"`
	UsedLLM          bool           `json:"used_llm"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
