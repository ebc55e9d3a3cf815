package parsing

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Default limits for ExtractKeywords.
const (
	DefaultKeywordMinLength = 2
	DefaultKeywordMaxCount  = 50
)

var stopWords = toSet(
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "is", "are", "was", "were", "be", "been",
	"being", "have", "has", "had", "do", "does", "did", "will", "would",
	"could", "should", "may", "might", "must", "shall", "can", "need",
	"dare", "ought", "used", "this", "that", "these", "those", "i", "you",
	"he", "she", "it", "we", "they", "me", "him", "her", "us", "them",
	"my", "your", "his", "its", "our", "their", "what", "which", "who",
	"whom", "when", "where", "why", "how", "all", "each", "every", "both",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not",
	"only", "own", "same", "so", "than", "too", "very", "just", "about",
	"above", "after", "again", "also", "as", "if", "into", "through",
	"during", "before", "between", "up", "down", "out", "off", "over",
	"under", "then", "once", "here", "there", "any", "work", "working",
	"experience", "ability", "able", "including", "etc", "using", "new",
	"well", "role", "team", "company", "looking", "join", "opportunity",
)

var tokenPattern = regexp.MustCompile(`\b[a-z][a-z+#./-]+\b`)

// yearsPatterns are tried in order; the first match wins.
var yearsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\+?\s*(?:years?|yrs?)[\s\w]*(?:of\s+)?experience`),
	regexp.MustCompile(`(?i)experience[\s:]*(\d+)\+?\s*(?:years?|yrs?)`),
	regexp.MustCompile(`(?i)minimum\s+(?:of\s+)?(\d+)\s*(?:years?|yrs?)`),
}

// ExtractKeywords returns the most frequent non-stop-word tokens in text,
// most frequent first. Ties keep first-seen order.
func ExtractKeywords(text string, minLength, maxCount int) []string {
	if minLength <= 0 {
		minLength = DefaultKeywordMinLength
	}
	if maxCount <= 0 {
		maxCount = DefaultKeywordMaxCount
	}

	freq := make(map[string]int)
	var order []string
	for _, word := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if _, stop := stopWords[word]; stop || len(word) < minLength {
			continue
		}
		if freq[word] == 0 {
			order = append(order, word)
		}
		freq[word]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})
	if len(order) > maxCount {
		order = order[:maxCount]
	}
	return order
}

// ExtractYearsOfExperience returns the years of experience a job text asks for.
func ExtractYearsOfExperience(text string) (int, bool) {
	for _, re := range yearsPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// NormalizeSkill folds a skill name into the form used for comparisons:
// lowercase, trimmed, dots removed, dashes and underscores as spaces.
func NormalizeSkill(skill string) string {
	s := strings.TrimSpace(strings.ToLower(skill))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.ReplaceAll(s, "_", " ")
}

// SkillSynonyms maps a canonical skill to its known aliases.
var SkillSynonyms = map[string][]string{
	"javascript": {"js", "ecmascript"},
	"typescript": {"ts"},
	"python":     {"py"},
	"react":      {"reactjs", "react.js"},
	"node":       {"nodejs", "node.js"},
	"vue":        {"vuejs", "vue.js"},
	"angular":    {"angularjs", "angular.js"},
	"postgres":   {"postgresql", "pg"},
	"mongo":      {"mongodb"},
	"redis":      {"redis db"},
	"aws":        {"amazon web services"},
	"gcp":        {"google cloud", "google cloud platform"},
	"azure":      {"microsoft azure"},
	"docker":     {"containerization"},
	"k8s":        {"kubernetes"},
	"ci/cd":      {"cicd", "continuous integration", "continuous deployment"},
	"ml":         {"machine learning"},
	"ai":         {"artificial intelligence"},
	"nlp":        {"natural language processing"},
	"sql":        {"structured query language"},
	"nosql":      {"non relational"},
	"rest":       {"restful", "rest api"},
	"graphql":    {"gql"},
}

// synonymIndex maps every canonical name and alias to the full alias group.
var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string][]string {
	idx := make(map[string][]string)
	canonicals := make([]string, 0, len(SkillSynonyms))
	for c := range SkillSynonyms {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)
	for _, canonical := range canonicals {
		aliases := SkillSynonyms[canonical]
		idx[canonical] = append([]string(nil), aliases...)
		group := append([]string{canonical}, aliases...)
		for _, alias := range aliases {
			idx[alias] = group
		}
	}
	return idx
}

// ExpandSynonyms returns the alternative spellings of a normalized skill,
// excluding the skill itself. Unknown skills have none.
func ExpandSynonyms(normalized string) []string {
	group := synonymIndex[normalized]
	out := make([]string, 0, len(group))
	for _, s := range group {
		if s != normalized {
			out = append(out, s)
		}
	}
	return out
}

// SkillMentioned reports whether skill, or any of its synonyms, appears in
// text. text is compared case-insensitively.
func SkillMentioned(skill, text string) bool {
	norm := NormalizeSkill(skill)
	if norm == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, norm) {
		return true
	}
	for _, syn := range ExpandSynonyms(norm) {
		if strings.Contains(lower, syn) {
			return true
		}
	}
	return false
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
