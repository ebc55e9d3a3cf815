package apply

import (
	"testing"

	"github.com/jonathan/apply-agent/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "9319135101", NormalizePhone("+91 93191 35101"))
	assert.Equal(t, "9876543210", NormalizePhone("(987) 654-3210"))
	assert.Equal(t, "12345", NormalizePhone("12-345"))
	assert.Empty(t, NormalizePhone("n/a"))
}

func TestCanonicalCity(t *testing.T) {
	assert.Equal(t, "Bengaluru", CanonicalCity("Bangalore, India"))
	assert.Equal(t, "Mumbai", CanonicalCity("bombay"))
	assert.Equal(t, "Gurugram", CanonicalCity("Gurgaon, Haryana"))
	assert.Equal(t, "Pune", CanonicalCity("Pune, Maharashtra"))
	assert.Empty(t, CanonicalCity(""))
}

func TestPostalCodeFromLocation(t *testing.T) {
	tests := []struct {
		location string
		want     string
		ok       bool
	}{
		{"Bangalore, Karnataka, India", "560001", true},
		{"New Delhi", "110001", true},
		{"Hybrid - Gurugram", "122001", true},
		{"Noida, Uttar Pradesh", "201301", true},
		{"Work From Home", "", false},
		{"Remote", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, ok := PostalCodeFromLocation(tt.location)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestAnswerer_ResolutionOrder(t *testing.T) {
	profile := &types.CandidateProfile{
		FullName:           "Jane Doe",
		ExpectedCTC:        "30 LPA",
		NoticePeriod:       "30 days",
		ApplicationAnswers: map[string]any{"expected_ctc": "28 LPA", "notice_period": "15"},
	}
	profile.Learning.RecordFieldSuccess("notice_period", "60")
	profile.Learning.RecordFieldSuccess("hear_about_us", "Referral")
	app := &types.Application{UserInputs: map[string]any{
		"expected_ctc":         "32 LPA",
		types.StopRequestedKey: true,
		"can_join_immediately": true,
		"years_experience":     float64(7),
	}}
	a := NewAnswerer(profile, &types.JobPosting{}, app)

	tests := []struct {
		key     FieldKey
		want    string
		wantSrc AnswerSource
	}{
		{FieldExpectedCTC, "32 LPA", SourceApplication},
		{FieldCanJoinImmediately, "Yes", SourceApplication},
		{FieldYearsExperience, "7", SourceApplication},
		{FieldNoticePeriod, "15", SourceProfile},
		{FieldHearAboutUs, "Referral", SourceLearned},
		{FieldHearAboutUsPlatform, "LinkedIn", SourceDefault},
		{FieldFirstName, "Jane", SourceDefault},
		{FieldLastName, "Doe", SourceDefault},
		{FieldVerificationCode, "", SourceNone},
		{FieldUnknown, "", SourceNone},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			got, src := a.Value(tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSrc, src)
		})
	}
}

func TestAnswerer_BlankOverridesFallThrough(t *testing.T) {
	profile := &types.CandidateProfile{Email: "jane@corp.io", ApplicationAnswers: map[string]any{"email": "  "}}
	app := &types.Application{UserInputs: map[string]any{"email": nil}}
	got, src := NewAnswerer(profile, nil, app).Value(FieldEmail)
	assert.Equal(t, "jane@corp.io", got)
	assert.Equal(t, SourceDefault, src)
}

func TestAnswerer_PostalCode(t *testing.T) {
	profile := &types.CandidateProfile{Location: "Pune"}

	got, src := NewAnswerer(profile, &types.JobPosting{Location: "Chennai, India"}, nil).Value(FieldPostalCode)
	assert.Equal(t, "600001", got)
	assert.Equal(t, SourceDefault, src)

	got, _ = NewAnswerer(profile, &types.JobPosting{Location: "Remote"}, nil).Value(FieldPostalCode)
	assert.Equal(t, "411001", got)

	got, src = NewAnswerer(&types.CandidateProfile{}, &types.JobPosting{Location: "Work From Home"}, nil).Value(FieldPostalCode)
	assert.Equal(t, DefaultPostalCode, got)
	assert.Equal(t, SourcePlaceholder, src)
}

func TestAnswerer_BooleanProfileFields(t *testing.T) {
	yes, no := true, false
	profile := &types.CandidateProfile{CanJoinImmediately: &no, NeedsSponsorship: &yes}
	a := NewAnswerer(profile, nil, nil)

	got, _ := a.Value(FieldCanJoinImmediately)
	assert.Equal(t, "No", got)
	got, _ = a.Value(FieldSponsorship)
	assert.Equal(t, "Yes", got)
}

func TestRuntimeOverrides(t *testing.T) {
	profile := &types.CandidateProfile{
		FullName: "Jane Doe",
		Email:    "jane@corp.io",
		Phone:    "+91 93191 35101",
		Location: "Bangalore, India",
	}
	job := &types.JobPosting{Location: "Bangalore, India"}
	app := &types.Application{UserInputs: map[string]any{"notice_period": "30"}}

	values, sources := NewAnswerer(profile, job, app).RuntimeOverrides()

	assert.Equal(t, "mobile", values["phone_type"])
	assert.Equal(t, "+91", values["phone_country_code"])
	assert.Equal(t, "0", values["phone_extension"])
	assert.Equal(t, "560001", values["postal_code"])
	assert.Equal(t, "Bengaluru", values["city"])
	assert.Equal(t, "9319135101", values["phone"])
	assert.Equal(t, "30", values["notice_period"])

	assert.Equal(t, "application", sources["notice_period"])
	assert.Equal(t, "default", sources["city"])
	assert.Equal(t, "generated_placeholder", sources["phone_type"])
	assert.NotContains(t, values, "verification_code")
	assert.NotContains(t, values, "current_ctc")
}
