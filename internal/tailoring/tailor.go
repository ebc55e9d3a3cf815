// Package tailoring rewrites a parsed resume toward one job description.
//
// The LLM path may reframe existing experience but never add to it. When the
// LLM is unavailable or misbehaves, skills are reordered by JD relevance instead.
package tailoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/apply-agent/internal/llm"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/parsing"
	"github.com/jonathan/apply-agent/internal/prompts"
	"github.com/jonathan/apply-agent/internal/schemas"
	"github.com/jonathan/apply-agent/internal/types"
)

// Section names in TailoringResult.ModifiedSections.
const (
	SectionSummary    = "summary"
	SectionSkills     = "skills"
	SectionExperience = "experience"
)

const (
	llmConfidence     = 0.8
	keywordConfidence = 0.4
	// jdPromptLimit truncates the job description sent to the LLM
	jdPromptLimit = 4000
)

// tailorResponse is the JSON shape requested from the LLM.
type tailorResponse struct {
	Summary         *string                `json:"summary,omitempty"`
	Skills          []string               `json:"skills,omitempty"`
	Experience      []types.ResumePosition `json:"experience,omitempty"`
	KeywordsAdded   []string               `json:"keywords_added,omitempty"`
	SectionsChanged []string               `json:"sections_changed,omitempty"`
	TailoringNotes  string                 `json:"tailoring_notes,omitempty"`
}

// Tailor rewrites parsed for the job. LLM failures fall back to
// TailorKeywordsOnly; no error reaches the caller.
func (s *Service) Tailor(ctx context.Context, parsed *types.ParsedResume, jd, title, company string) types.TailoringResult {
	result, err := s.tailorWithLLM(ctx, parsed, jd, title, company)
	if err != nil {
		logger.FromContext(ctx).Warn("LLM tailoring failed, using keyword fallback",
			logger.String("kind", string(llm.KindOf(err))),
			logger.Error(err))
		return TailorKeywordsOnly(parsed, parsing.ExtractKeywords(jd, parsing.DefaultKeywordMinLength, parsing.DefaultKeywordMaxCount))
	}
	return result
}

func (s *Service) tailorWithLLM(ctx context.Context, parsed *types.ParsedResume, jd, title, company string) (types.TailoringResult, error) {
	if parsed == nil {
		return types.TailoringResult{}, &llm.Failure{Kind: llm.KindInvalidJSON, Err: fmt.Errorf("no parsed resume")}
	}
	prompt, system, err := buildPrompt(parsed, jd, title, company)
	if err != nil {
		return types.TailoringResult{}, &llm.Failure{Kind: llm.KindUnavailable, Err: err}
	}

	var resp tailorResponse
	if err := s.completer.CompleteJSON(ctx, prompt, system, &resp); err != nil {
		return types.TailoringResult{}, err
	}
	if err := schemas.ValidateValue(schemas.Tailoring, resp); err != nil {
		return types.TailoringResult{}, &llm.Failure{Kind: llm.KindInvalidJSON, Err: err}
	}

	sections := make(map[string]any, 3)
	if resp.Summary != nil {
		sections[SectionSummary] = *resp.Summary
	}
	if resp.Skills != nil {
		sections[SectionSkills] = parsing.DedupeSkills(resp.Skills)
	}
	if resp.Experience != nil {
		sections[SectionExperience] = resp.Experience
	}
	return types.TailoringResult{
		ModifiedSections: sections,
		KeywordsAdded:    nonNil(resp.KeywordsAdded),
		SectionsChanged:  nonNil(resp.SectionsChanged),
		TailoringNotes:   resp.TailoringNotes,
		ConfidenceScore:  llmConfidence,
		UsedLLM:          true,
	}, nil
}

// TailorKeywordsOnly moves skills that match a JD keyword to the front,
// keeping relative order otherwise.
func TailorKeywordsOnly(parsed *types.ParsedResume, jdKeywords []string) types.TailoringResult {
	var skills []string
	if parsed != nil {
		skills = parsed.Skills
	}
	wanted := make(map[string]struct{}, len(jdKeywords))
	for _, k := range jdKeywords {
		wanted[parsing.NormalizeSkill(k)] = struct{}{}
	}

	matched := make([]string, 0, len(skills))
	others := make([]string, 0, len(skills))
	for _, skill := range skills {
		if _, ok := wanted[parsing.NormalizeSkill(skill)]; ok {
			matched = append(matched, skill)
		} else {
			others = append(others, skill)
		}
	}

	return types.TailoringResult{
		ModifiedSections: map[string]any{SectionSkills: append(matched, others...)},
		KeywordsAdded:    []string{},
		SectionsChanged:  []string{SectionSkills},
		TailoringNotes:   fmt.Sprintf("Reordered skills to prioritize %d JD-matched skills.", len(matched)),
		ConfidenceScore:  keywordConfidence,
	}
}

// ApplySections returns a copy of parsed with modified sections merged in.
// Sections of an unexpected type are ignored.
func ApplySections(parsed *types.ParsedResume, sections map[string]any) *types.ParsedResume {
	out := parsed.Clone()
	if out == nil {
		out = &types.ParsedResume{}
	}
	if v, ok := sections[SectionSummary].(string); ok {
		out.Summary = v
	}
	if v, ok := sections[SectionSkills].([]string); ok {
		out.Skills = append([]string(nil), v...)
	}
	if v, ok := sections[SectionExperience].([]types.ResumePosition); ok {
		out.Experience = append([]types.ResumePosition(nil), v...)
	}
	return out
}

func buildPrompt(parsed *types.ParsedResume, jd, title, company string) (string, string, error) {
	tmpl, err := prompts.Get("tailoring.json", "tailor-resume")
	if err != nil {
		return "", "", err
	}
	system, err := prompts.Get("tailoring.json", "tailor-system")
	if err != nil {
		return "", "", err
	}
	if r := []rune(jd); len(r) > jdPromptLimit {
		jd = string(r[:jdPromptLimit])
	}
	summary := parsed.Summary
	if summary == "" {
		summary = "N/A"
	}

	var exp strings.Builder
	for _, e := range parsed.Experience {
		fmt.Fprintf(&exp, "\n- %s at %s (%s - %s)", e.Title, e.Company, e.StartDate, e.EndDate)
		fmt.Fprintf(&exp, "\n  %s", e.Description)
		for _, b := range e.Bullets {
			fmt.Fprintf(&exp, "\n  * %s", b)
		}
	}

	return prompts.Format(tmpl, map[string]string{
		"JobTitle":       title,
		"Company":        company,
		"JobDescription": jd,
		"Name":           parsed.Name,
		"Summary":        summary,
		"Skills":         strings.Join(parsed.Skills, ", "),
		"Experience":     exp.String(),
	}), system, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
