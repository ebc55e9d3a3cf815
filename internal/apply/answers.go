package apply

import (
	"fmt"
	"strings"

	"github.com/jonathan/apply-agent/internal/types"
)

// AnswerSource records where a resolved answer came from.
type AnswerSource string

const (
	SourceNone        AnswerSource = ""
	SourceApplication AnswerSource = "application"
	SourceProfile     AnswerSource = "profile"
	SourceLearned     AnswerSource = "learned"
	SourceDefault     AnswerSource = "default"
	SourcePlaceholder AnswerSource = "generated_placeholder"
)

// Placeholder defaults used when nothing better is known.
const (
	DefaultPostalCode          = "110001"
	DefaultPhoneExtension      = "0"
	DefaultPhoneType           = "mobile"
	DefaultPhoneCountryCode    = "+91"
	DefaultHearAboutUs         = "Social Media"
	DefaultHearAboutUsPlatform = "LinkedIn"
	DefaultAppliedBefore       = "No"
)

var cityAliases = map[string]string{
	"bangalore": "Bengaluru",
	"bengaluru": "Bengaluru",
	"bombay":    "Mumbai",
	"mumbai":    "Mumbai",
	"gurgaon":   "Gurugram",
	"gurugram":  "Gurugram",
	"calcutta":  "Kolkata",
	"kolkata":   "Kolkata",
	"madras":    "Chennai",
	"chennai":   "Chennai",
	"new delhi": "New Delhi",
}

// cityPINs maps lowercase city names to a representative PIN code.
var cityPINs = []struct {
	city string
	pin  string
}{
	{"new delhi", "110001"},
	{"delhi", "110001"},
	{"mumbai", "400001"},
	{"bombay", "400001"},
	{"bengaluru", "560001"},
	{"bangalore", "560001"},
	{"chennai", "600001"},
	{"kolkata", "700001"},
	{"hyderabad", "500001"},
	{"pune", "411001"},
	{"ahmedabad", "380001"},
	{"jaipur", "302001"},
	{"gurgaon", "122001"},
	{"gurugram", "122001"},
	{"noida", "201301"},
	{"chandigarh", "160017"},
	{"kochi", "682001"},
	{"lucknow", "226001"},
	{"indore", "452001"},
	{"coimbatore", "641001"},
}

// PostalCodeFromLocation finds a known city in free-form location text.
func PostalCodeFromLocation(location string) (string, bool) {
	text := " " + normalizeMeta(location) + " "
	for _, c := range cityPINs {
		if strings.Contains(text, " "+c.city+" ") {
			return c.pin, true
		}
	}
	return "", false
}

// CanonicalCity returns the first comma-separated part of location with
// historical city names replaced by their current form.
func CanonicalCity(location string) string {
	city := strings.TrimSpace(strings.Split(location, ",")[0])
	if city == "" {
		return ""
	}
	if canon, ok := cityAliases[strings.ToLower(city)]; ok {
		return canon
	}
	return city
}

// NormalizePhone keeps digits only and trims to the last ten.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	return digits
}

// Answerer resolves form answers for one application attempt.
type Answerer struct {
	profile   *types.CandidateProfile
	job       *types.JobPosting
	overrides map[string]any
}

// NewAnswerer builds an Answerer. Any argument may be nil.
func NewAnswerer(profile *types.CandidateProfile, job *types.JobPosting, app *types.Application) *Answerer {
	a := &Answerer{profile: profile, job: job}
	if a.profile == nil {
		a.profile = &types.CandidateProfile{}
	}
	if a.job == nil {
		a.job = &types.JobPosting{}
	}
	if app != nil {
		a.overrides = app.Overrides()
	}
	return a
}

// Value returns the answer for key and where it came from. An empty value
// means the field should be left alone.
func (a *Answerer) Value(key FieldKey) (string, AnswerSource) {
	if key == FieldUnknown {
		return "", SourceNone
	}
	if v, ok := stringify(a.overrides[string(key)]); ok {
		return v, SourceApplication
	}
	if v, ok := stringify(a.profile.ApplicationAnswers[string(key)]); ok {
		return v, SourceProfile
	}
	if v, ok := a.profile.Learning.BestValue(string(key)); ok {
		return v, SourceLearned
	}
	return a.defaultValue(key)
}

func (a *Answerer) defaultValue(key FieldKey) (string, AnswerSource) {
	p := a.profile
	switch key {
	case FieldFirstName:
		return nonEmpty(p.FirstName(), SourceDefault)
	case FieldLastName:
		return nonEmpty(p.LastName(), SourceDefault)
	case FieldFullName:
		return nonEmpty(strings.TrimSpace(p.FullName), SourceDefault)
	case FieldEmail:
		return nonEmpty(strings.TrimSpace(p.Email), SourceDefault)
	case FieldPhone:
		return nonEmpty(NormalizePhone(p.Phone), SourceDefault)
	case FieldPhoneExtension:
		return DefaultPhoneExtension, SourceDefault
	case FieldPhoneType:
		return DefaultPhoneType, SourceDefault
	case FieldPhoneCountryCode:
		return DefaultPhoneCountryCode, SourceDefault
	case FieldCity:
		city := CanonicalCity(p.Location)
		if city == "" {
			city = CanonicalCity(a.job.Location)
		}
		return nonEmpty(city, SourceDefault)
	case FieldPostalCode:
		if pin, ok := PostalCodeFromLocation(a.job.Location); ok {
			return pin, SourceDefault
		}
		if pin, ok := PostalCodeFromLocation(p.Location); ok {
			return pin, SourceDefault
		}
		return DefaultPostalCode, SourcePlaceholder
	case FieldLinkedInURL:
		return nonEmpty(strings.TrimSpace(p.LinkedInURL), SourceDefault)
	case FieldCurrentCTC:
		return nonEmpty(p.CurrentCTC, SourceDefault)
	case FieldExpectedCTC:
		return nonEmpty(p.ExpectedCTC, SourceDefault)
	case FieldNoticePeriod:
		return nonEmpty(p.NoticePeriod, SourceDefault)
	case FieldCanJoinImmediately:
		if p.CanJoinImmediately != nil {
			return yesNo(*p.CanJoinImmediately), SourceDefault
		}
	case FieldWorkAuthorization:
		return nonEmpty(p.WorkAuthorization, SourceDefault)
	case FieldSponsorship:
		if p.NeedsSponsorship != nil {
			return yesNo(*p.NeedsSponsorship), SourceDefault
		}
	case FieldHearAboutUs:
		return DefaultHearAboutUs, SourceDefault
	case FieldHearAboutUsPlatform:
		return DefaultHearAboutUsPlatform, SourceDefault
	case FieldAppliedBefore:
		return DefaultAppliedBefore, SourceDefault
	case FieldYearsExperience:
		if n := len(p.Experience); n > 0 {
			return fmt.Sprint(n * 2), SourceDefault
		}
	}
	return "", SourceNone
}

// RuntimeOverrides resolves every known field and returns the non-empty
// values with their sources. Placeholder defaults are reported as
// generated_placeholder so reviewers can tell them apart from real data.
func (a *Answerer) RuntimeOverrides() (map[string]string, map[string]string) {
	values := make(map[string]string)
	sources := make(map[string]string)
	for _, key := range AllFieldKeys() {
		v, src := a.Value(key)
		if v == "" {
			continue
		}
		if src == SourceDefault && isPlaceholderKey(key) {
			src = SourcePlaceholder
		}
		values[string(key)] = v
		sources[string(key)] = string(src)
	}
	return values, sources
}

// isPlaceholderKey reports whether key's default is a fixed guess rather
// than derived from profile or job data.
func isPlaceholderKey(key FieldKey) bool {
	switch key {
	case FieldPhoneExtension, FieldPhoneType, FieldPhoneCountryCode,
		FieldHearAboutUs, FieldHearAboutUsPlatform, FieldAppliedBefore:
		return true
	}
	return false
}

func nonEmpty(v string, src AnswerSource) (string, AnswerSource) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", SourceNone
	}
	return v, src
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// stringify converts a stored answer to form text. Nil and blank values
// report false.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		return yesNo(t), true
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprint(int64(t)), true
		}
		return fmt.Sprint(t), true
	default:
		s := strings.TrimSpace(fmt.Sprint(t))
		return s, s != ""
	}
}
