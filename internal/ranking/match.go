// Package ranking scores job postings against the candidate profile.
package ranking

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/parsing"
	"github.com/jonathan/apply-agent/internal/prompts"
	"github.com/jonathan/apply-agent/internal/schemas"
	"github.com/jonathan/apply-agent/internal/types"
)

// Component weights of the overall score
const (
	skillWeight      = 0.45
	titleWeight      = 0.35
	experienceWeight = 0.05
	locationWeight   = 0.05
	keywordWeight    = 0.10
)

// Recommendation thresholds on the overall score
const (
	strongThreshold = 75.0
	goodThreshold   = 60.0
	weakThreshold   = 40.0
)

const (
	// skillSaturation is the number of matched skills that yields a full skill score
	skillSaturation = 8
	// keywordWindow is how many top JD keywords are compared with profile skills
	keywordWindow = 20
	// neutralScore is used when a factor cannot be evaluated
	neutralScore = 50.0
	// unstatedExperienceScore is used when the JD names no years requirement
	unstatedExperienceScore = 70.0
	// yearsPerPosition estimates candidate years from experience entries
	yearsPerPosition = 2
	// deepDescriptionLimit truncates the description sent to the LLM
	deepDescriptionLimit = 3000
)

// Score computes the weighted keyword-based match of job against profile.
// A nil or empty profile yields an unscored result rather than a baseline.
func Score(job *types.JobPosting, profile *types.CandidateProfile) types.MatchResult {
	if profile == nil {
		return unscored(types.UnscoredProfileMissing, "Unscored: profile missing")
	}
	if profile.IsEmpty() {
		return unscored(types.UnscoredProfileEmpty,
			"Unscored: profile has no skills, target roles, experience or summary")
	}

	skill, matched, missing := scoreSkills(job.Description, profile.Skills)
	title := scoreTitle(job.Title, profile.TargetRoles)
	experience := scoreExperience(job.Description, len(profile.Experience))
	location := scoreLocation(job.Location, job.WorkType, profile.TargetLocations)

	keywords := parsing.ExtractKeywords(job.Description, parsing.DefaultKeywordMinLength, parsing.DefaultKeywordMaxCount)
	keyword := scoreKeywordOverlap(keywords, profile.Skills)

	overall := skill*skillWeight +
		title*titleWeight +
		experience*experienceWeight +
		location*locationWeight +
		keyword*keywordWeight

	rec := recommend(overall)
	if len(keywords) > keywordWindow {
		keywords = keywords[:keywordWindow]
	}
	return types.MatchResult{
		Overall:        round1(overall),
		Skill:          round1(skill),
		Title:          round1(title),
		Experience:     round1(experience),
		Location:       round1(location),
		Keyword:        round1(keyword),
		MatchedSkills:  matched,
		MissingSkills:  missing,
		Keywords:       keywords,
		Recommendation: rec,
		Explanation: fmt.Sprintf("Overall %s: %d%% match. %d of your skills matched.",
			strings.ReplaceAll(rec, "_", " "), int(math.Round(overall)), len(matched)),
	}
}

// BatchScore scores each job with the fast keyword path.
func BatchScore(jobs []types.JobPosting, profile *types.CandidateProfile) []types.MatchResult {
	results := make([]types.MatchResult, len(jobs))
	for i := range jobs {
		results[i] = Score(&jobs[i], profile)
	}
	return results
}

func unscored(reason, explanation string) types.MatchResult {
	return types.MatchResult{
		MatchedSkills:  []string{},
		MissingSkills:  []string{},
		Recommendation: types.RecommendUnscored,
		Explanation:    explanation,
		Unscored:       true,
		UnscoredReason: reason,
	}
}

func recommend(overall float64) string {
	switch {
	case overall >= strongThreshold:
		return types.RecommendStrong
	case overall >= goodThreshold:
		return types.RecommendGood
	case overall >= weakThreshold:
		return types.RecommendWeak
	default:
		return types.RecommendPoor
	}
}

// scoreSkills counts profile skills mentioned in the description, directly
// or through a synonym. The count is not divided by the profile size.
func scoreSkills(description string, skills []string) (float64, []string, []string) {
	matched := make([]string, 0, len(skills))
	missing := make([]string, 0, len(skills))
	for _, skill := range skills {
		if parsing.SkillMentioned(skill, description) {
			matched = append(matched, skill)
		} else {
			missing = append(missing, skill)
		}
	}
	if len(skills) == 0 {
		return neutralScore, matched, missing
	}
	score := float64(len(matched)) / skillSaturation * 100
	return math.Min(score, 100), matched, missing
}

// scoreTitle returns the best word-overlap fraction between the job title
// and any target role.
func scoreTitle(jobTitle string, targetRoles []string) float64 {
	if len(targetRoles) == 0 {
		return neutralScore
	}
	jobWords := wordSet(jobTitle)
	best := 0.0
	for _, role := range targetRoles {
		roleWords := wordSet(role)
		if len(roleWords) == 0 {
			continue
		}
		overlap := 0
		for w := range roleWords {
			if _, ok := jobWords[w]; ok {
				overlap++
			}
		}
		best = math.Max(best, float64(overlap)/float64(len(roleWords))*100)
	}
	return math.Min(best, 100)
}

func scoreExperience(description string, positions int) float64 {
	required, ok := parsing.ExtractYearsOfExperience(description)
	if !ok {
		return unstatedExperienceScore
	}
	total := float64(positions * yearsPerPosition)
	req := float64(required)
	switch {
	case total >= req:
		return 100
	case total >= req*0.7:
		return 70
	case total >= req*0.5:
		return 40
	default:
		return 20
	}
}

func scoreLocation(jobLocation, workType string, targets []string) float64 {
	if len(targets) == 0 {
		return neutralScore
	}
	if strings.Contains(strings.ToLower(workType), types.WorkTypeRemote) {
		for _, loc := range targets {
			if strings.Contains(strings.ToLower(loc), "remote") {
				return 100
			}
		}
		return 80
	}
	jobLoc := strings.ToLower(strings.TrimSpace(jobLocation))
	if jobLoc == "" {
		return neutralScore
	}
	for _, loc := range targets {
		l := strings.ToLower(strings.TrimSpace(loc))
		if l == "" {
			continue
		}
		if strings.Contains(jobLoc, l) || strings.Contains(l, jobLoc) {
			return 100
		}
	}
	return 20
}

func scoreKeywordOverlap(keywords, skills []string) float64 {
	if len(keywords) == 0 || len(skills) == 0 {
		return neutralScore
	}
	normalized := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		normalized[parsing.NormalizeSkill(s)] = struct{}{}
	}
	window := keywords
	if len(window) > keywordWindow {
		window = window[:keywordWindow]
	}
	matched := 0
	for _, kw := range window {
		if _, ok := normalized[parsing.NormalizeSkill(kw)]; ok {
			matched++
		}
	}
	return math.Min(float64(matched)/float64(len(window))*100, 100)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// deepMatchResponse is the JSON shape requested from the LLM.
type deepMatchResponse struct {
	OverallScore    *float64 `json:"overall_score,omitempty"`
	SkillScore      *float64 `json:"skill_score,omitempty"`
	TitleScore      *float64 `json:"title_score,omitempty"`
	ExperienceScore *float64 `json:"experience_score,omitempty"`
	Explanation     string   `json:"explanation"`
	MissingSkills   []string `json:"missing_skills,omitempty"`
}

// ScoreDeep computes the baseline score and lets one LLM call override the
// overall score, explanation and missing skills. Any LLM or validation
// failure keeps the baseline.
func ScoreDeep(ctx context.Context, job *types.JobPosting, profile *types.CandidateProfile, completer llm.Completer) types.MatchResult {
	base := Score(job, profile)
	if base.Unscored || completer == nil {
		return base
	}
	log := logger.FromContext(ctx)

	prompt, system, err := buildDeepPrompt(job, profile)
	if err != nil {
		log.Warn("Deep scoring prompt unavailable, using keyword scores", logger.Error(err))
		return base
	}

	var resp deepMatchResponse
	if err := completer.CompleteJSON(ctx, prompt, system, &resp); err != nil {
		log.Warn("Deep scoring failed, using keyword scores",
			logger.String("kind", string(llm.KindOf(err))),
			logger.Error(err))
		return base
	}
	if err := schemas.ValidateValue(schemas.DeepMatch, resp); err != nil {
		log.Warn("Deep scoring response rejected, using keyword scores", logger.Error(err))
		return base
	}

	if resp.OverallScore != nil {
		base.Overall = round1(*resp.OverallScore)
		base.Recommendation = recommend(base.Overall)
	}
	if strings.TrimSpace(resp.Explanation) != "" {
		base.Explanation = resp.Explanation
	}
	if len(resp.MissingSkills) > 0 {
		base.MissingSkills = resp.MissingSkills
	}
	base.LLMAugmented = true
	return base
}

func buildDeepPrompt(job *types.JobPosting, profile *types.CandidateProfile) (string, string, error) {
	tmpl, err := prompts.Get("matching.json", "deep-match")
	if err != nil {
		return "", "", err
	}
	system, err := prompts.Get("matching.json", "deep-match-system")
	if err != nil {
		return "", "", err
	}
	description := job.Description
	if r := []rune(description); len(r) > deepDescriptionLimit {
		description = string(r[:deepDescriptionLimit])
	}
	return prompts.Format(tmpl, map[string]string{
		"JobTitle":       job.Title,
		"JobDescription": description,
		"Skills":         strings.Join(profile.Skills, ", "),
		"TargetRoles":    strings.Join(profile.TargetRoles, ", "),
	}), system, nil
}
