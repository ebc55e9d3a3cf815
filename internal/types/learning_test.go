package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearningStats_BestValue_HighestCountWins(t *testing.T) {
	var l LearningStats
	for i := 0; i < 5; i++ {
		l.RecordFieldSuccess("hear_about_us", "LinkedIn")
	}
	l.RecordFieldSuccess("hear_about_us", "Social Media")
	l.RecordFieldSuccess("hear_about_us", "Social Media")

	v, ok := l.BestValue("hear_about_us")
	require.True(t, ok)
	assert.Equal(t, "LinkedIn", v)
	assert.Equal(t, map[string]string{"hear_about_us": "LinkedIn"}, l.BestValues())
}

func TestLearningStats_BestValue_TieIsLexical(t *testing.T) {
	var l LearningStats
	l.RecordFieldSuccess("city", "Pune")
	l.RecordFieldSuccess("city", "Delhi")

	v, ok := l.BestValue("city")
	require.True(t, ok)
	assert.Equal(t, "Delhi", v)
}

func TestLearningStats_IgnoresBlankInput(t *testing.T) {
	var l LearningStats
	l.RecordFieldSuccess("", "x")
	l.RecordFieldSuccess("city", "  ")
	l.RecordBlocker("")
	l.RecordDomainOutcome("", StatusSubmitted)
	assert.True(t, l.IsZero())

	_, ok := l.BestValue("city")
	assert.False(t, ok)
}

func TestLearningStats_RecordDomainOutcome(t *testing.T) {
	var l LearningStats
	l.RecordDomainOutcome("Careers.Acme.com", StatusSubmitted)
	l.RecordDomainOutcome("careers.acme.com", StatusReviewed)
	l.RecordDomainOutcome("careers.acme.com", StatusFailed)

	assert.Equal(t, DomainStat{Runs: 3, Submitted: 1, Failed: 1, Reviewed: 1}, l.DomainStats["careers.acme.com"])
}

func TestLearningStats_PersistedShapeRoundTrip(t *testing.T) {
	var l LearningStats
	l.RecordFieldSuccess("postal_code", "560001")
	l.RecordBlocker("captcha_required")
	l.RecordDomainOutcome("boards.greenhouse.io", StatusSubmitted)

	// Persist through JSON so numbers come back as float64.
	raw, err := json.Marshal(l.ToMap())
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	got := LearningFromMap(decoded)
	assert.Equal(t, l, got)
}

func TestCandidateProfile_AnswersBlob(t *testing.T) {
	p := CandidateProfile{ApplicationAnswers: map[string]any{"notice_period": "30 days"}}
	p.Learning.RecordFieldSuccess("hear_about_us", "LinkedIn")

	blob := p.AnswersBlob()
	assert.Equal(t, "30 days", blob["notice_period"])
	require.Contains(t, blob, LearningKey)

	var loaded CandidateProfile
	loaded.LoadAnswersBlob(blob)
	assert.NotContains(t, loaded.ApplicationAnswers, LearningKey)
	assert.Equal(t, "30 days", loaded.ApplicationAnswers["notice_period"])
	v, ok := loaded.Learning.BestValue("hear_about_us")
	require.True(t, ok)
	assert.Equal(t, "LinkedIn", v)
}

func TestCandidateProfile_IsEmpty(t *testing.T) {
	assert.True(t, (&CandidateProfile{FullName: "Jane Doe"}).IsEmpty())
	assert.False(t, (&CandidateProfile{Skills: []string{"go"}}).IsEmpty())
	assert.False(t, (&CandidateProfile{Summary: "Backend engineer"}).IsEmpty())
}

func TestCandidateProfile_NameParts(t *testing.T) {
	p := CandidateProfile{FullName: "  Jane  Q  Doe "}
	assert.Equal(t, "Jane", p.FirstName())
	assert.Equal(t, "Doe", p.LastName())

	single := CandidateProfile{FullName: "Cher"}
	assert.Equal(t, "Cher", single.FirstName())
	assert.Equal(t, "", single.LastName())
}
