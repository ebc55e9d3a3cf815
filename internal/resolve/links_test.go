package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractApplyLinks_ScoresAndOrders(t *testing.T) {
	r := New(&MockGetter{}, nil, Config{})
	html := `
		<a href="https://acme.com/team">Our team</a>
		<a href="https://acme.com/jobs/42">Senior Engineer position</a>
		<a href="https://acme.wd5.myworkdayjobs.com/External/job/42/apply">Apply now</a>
		<a href="https://acme.com/openings">Openings</a>`

	links := r.ExtractApplyLinks(html, "https://remotive.com/j/1")
	assert.Equal(t, []string{
		"https://acme.wd5.myworkdayjobs.com/External/job/42/apply",
		"https://acme.com/jobs/42",
		"https://acme.com/openings",
	}, links)
}

func TestExtractApplyLinks_FiltersAndDedupes(t *testing.T) {
	r := New(&MockGetter{}, nil, Config{})
	html := `
		<a href="#apply">Apply</a>
		<a href="javascript:apply()">Apply</a>
		<a href="mailto:jobs@acme.com">Apply by email</a>
		<a href="/remote-jobs/apply">Apply on board</a>
		<a href="https://jobs.lever.co/acme/1">Apply</a>
		<a href="https://jobs.lever.co/acme/1">Apply again</a>
		<a href="https://acme.com/blog">Blog</a>`

	links := r.ExtractApplyLinks(html, "https://remotive.com/j/1")
	assert.Equal(t, []string{"https://jobs.lever.co/acme/1"}, links)
}

func TestExtractApplyLinks_ResolvesRelativeAgainstBase(t *testing.T) {
	r := New(&MockGetter{}, nil, Config{})
	links := r.ExtractApplyLinks(`<a href="/careers/apply?id=1">Apply</a>`, "https://acme.com/jobs/1")
	assert.Equal(t, []string{"https://acme.com/careers/apply?id=1"}, links)
}

func TestScoreAnchor(t *testing.T) {
	tests := []struct {
		text string
		url  string
		want int
	}{
		{"Learn more", "https://acme.com/x", 1},
		{"Apply", "https://acme.com/x", 4},
		{"Apply", "https://boards.greenhouse.io/acme/jobs/1", 8},
		{"View opening", "https://acme.com/x", 2},
		{"Careers", "https://jobs.smartrecruiters.com/acme", 5},
	}
	for _, tt := range tests {
		t.Run(tt.text+" "+tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreAnchor(tt.text, tt.url))
		})
	}
}

func TestIsApplyCandidate(t *testing.T) {
	assert.True(t, isApplyCandidate("Submit application", "https://acme.com/x"))
	assert.True(t, isApplyCandidate("Details", "https://acme.icims.com/x"))
	assert.False(t, isApplyCandidate("Home", "https://acme.com/"))
	assert.False(t, isApplyCandidate("Apply", "#apply"))
}
