package resolve

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// applyIntentTokens mark an anchor as a possible application link.
var applyIntentTokens = []string{
	"apply", "application", "careers", "job", "position", "opening",
	"greenhouse", "lever", "workday", "icims", "smartrecruiters", "ashbyhq",
}

var atsVendorTokens = []string{"greenhouse", "lever", "workday", "icims", "ashbyhq", "smartrecruiters"}

var careerTokens = []string{"careers", "jobs", "position", "opening"}

type scoredLink struct {
	url   string
	score int
}

// ExtractApplyLinks returns external application links found in html, best first.
// Links to aggregator domains are dropped.
func (r *Resolver) ExtractApplyLinks(html, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	base, _ := url.Parse(baseURL)

	var links []scoredLink
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" {
			return
		}
		abs := absoluteURL(base, href)
		lowerAbs := strings.ToLower(abs)
		if !strings.HasPrefix(lowerAbs, "http://") && !strings.HasPrefix(lowerAbs, "https://") {
			return
		}
		if r.IsBoardDomain(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		text := strings.Join(strings.Fields(a.Text()), " ")
		if !isApplyCandidate(text, abs) {
			return
		}
		links = append(links, scoredLink{url: abs, score: scoreAnchor(text, abs)})
		seen[abs] = struct{}{}
	})

	sort.SliceStable(links, func(i, j int) bool { return links[i].score > links[j].score })
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.url
	}
	return out
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func isApplyCandidate(text, href string) bool {
	textL := strings.ToLower(text)
	hrefL := strings.ToLower(href)
	if hrefL == "" || strings.HasPrefix(hrefL, "#") || strings.HasPrefix(hrefL, "javascript:") {
		return false
	}
	for _, tok := range applyIntentTokens {
		if strings.Contains(textL, tok) || strings.Contains(hrefL, tok) {
			return true
		}
	}
	return false
}

func scoreAnchor(text, absURL string) int {
	lowered := strings.ToLower(text + " " + absURL)
	score := 1
	if strings.Contains(lowered, "apply") {
		score += 3
	}
	if containsAny(lowered, atsVendorTokens) {
		score += 3
	}
	if containsAny(lowered, careerTokens) {
		score++
	}
	return score
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
