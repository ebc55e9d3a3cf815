package parsing

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// canonicalSkills maps lowercase spellings to the name shown on a resume.
var canonicalSkills = map[string]string{
	"golang":     "Go",
	"go lang":    "Go",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
	"kubernetes": "Kubernetes",
	"k8s":        "Kubernetes",
	"react.js":   "React",
	"reactjs":    "React",
	"vue.js":     "Vue",
	"vuejs":      "Vue",
	"node.js":    "Node.js",
	"nodejs":     "Node.js",
	"postgresql": "PostgreSQL",
	"postgres":   "PostgreSQL",
	"mongodb":    "MongoDB",
	"graphql":    "GraphQL",
	"aws":        "AWS",
	"gcp":        "GCP",
	"sql":        "SQL",
}

// maxAcronymLen is the longest all-caps word kept as an acronym.
const maxAcronymLen = 4

// NormalizeSkillName returns the display form of a skill. Known aliases map
// to their canonical name; single lowercase or shouting words get a leading
// capital; anything else is kept as written.
func NormalizeSkillName(skill string) string {
	skill = strings.TrimSpace(skill)
	if skill == "" {
		return ""
	}
	lower := strings.ToLower(skill)
	if name, ok := canonicalSkills[lower]; ok {
		return name
	}
	if strings.ContainsFunc(skill, unicode.IsSpace) {
		return skill
	}

	switch {
	case skill == lower:
		return capitalize(skill)
	case skill == strings.ToUpper(skill) && utf8.RuneCountInString(skill) > maxAcronymLen:
		return capitalize(lower)
	default:
		return skill
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// DedupeSkills canonicalizes display names and drops duplicates that compare
// equal under NormalizeSkill, keeping the first occurrence's position.
func DedupeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		display := NormalizeSkillName(s)
		if display == "" {
			continue
		}
		key := NormalizeSkill(display)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, display)
	}
	return out
}
