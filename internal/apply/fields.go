// Package apply fills and submits job application forms in a browser session.
package apply

import (
	"strings"
	"unicode"
)

// FieldKey is the canonical meaning of a form input.
type FieldKey string

const (
	FieldUnknown             FieldKey = ""
	FieldFirstName           FieldKey = "first_name"
	FieldLastName            FieldKey = "last_name"
	FieldFullName            FieldKey = "full_name"
	FieldEmail               FieldKey = "email"
	FieldPhone               FieldKey = "phone"
	FieldPhoneExtension      FieldKey = "phone_extension"
	FieldPhoneType           FieldKey = "phone_type"
	FieldPhoneCountryCode    FieldKey = "phone_country_code"
	FieldCity                FieldKey = "city"
	FieldPostalCode          FieldKey = "postal_code"
	FieldLinkedInURL         FieldKey = "linkedin_url"
	FieldCurrentCTC          FieldKey = "current_ctc"
	FieldExpectedCTC         FieldKey = "expected_ctc"
	FieldNoticePeriod        FieldKey = "notice_period"
	FieldCanJoinImmediately  FieldKey = "can_join_immediately"
	FieldWorkAuthorization   FieldKey = "work_authorization"
	FieldSponsorship         FieldKey = "sponsorship"
	FieldVerificationCode    FieldKey = "verification_code"
	FieldHearAboutUs         FieldKey = "hear_about_us"
	FieldHearAboutUsPlatform FieldKey = "hear_about_us_platform"
	FieldAppliedBefore       FieldKey = "applied_before"
	FieldYearsExperience     FieldKey = "years_experience"
)

// fieldPatterns lists each key's label phrases. Matching is on whole words;
// the longest matching phrase wins and ties go to the earlier key.
var fieldPatterns = []struct {
	key      FieldKey
	patterns []string
}{
	{FieldFirstName, []string{"first name", "firstname", "given name", "fname", "forename"}},
	{FieldLastName, []string{"last name", "lastname", "surname", "family name", "lname"}},
	{FieldFullName, []string{"full name", "fullname", "your name", "legal name", "name as per"}},
	{FieldEmail, []string{"email", "e mail", "email address"}},
	{FieldPhone, []string{"phone", "mobile", "telephone", "phone number", "mobile number", "contact number"}},
	{FieldPhoneExtension, []string{"phone extension", "extension", "ext"}},
	{FieldPhoneType, []string{"phone type", "phone device type", "device type"}},
	{FieldPhoneCountryCode, []string{"country code", "phone country code", "country phone code", "dial code", "country calling code"}},
	{FieldCity, []string{"city", "town", "current city", "current location"}},
	{FieldPostalCode, []string{"postal code", "postcode", "zip", "zip code", "zipcode", "pin code", "pincode"}},
	{FieldLinkedInURL, []string{"linkedin", "linkedin profile", "linkedin url"}},
	{FieldCurrentCTC, []string{"current ctc", "current salary", "current compensation", "current annual ctc"}},
	{FieldExpectedCTC, []string{"expected ctc", "expected salary", "salary expectation", "salary expectations", "expected compensation", "desired salary"}},
	{FieldNoticePeriod, []string{"notice period", "notice period in days"}},
	{FieldCanJoinImmediately, []string{"join immediately", "immediate joiner", "immediately available", "start immediately"}},
	{FieldWorkAuthorization, []string{"work authorization", "authorized to work", "legally authorized", "work permit", "right to work"}},
	{FieldSponsorship, []string{"sponsorship", "visa sponsorship", "require sponsorship", "require a visa"}},
	{FieldVerificationCode, []string{"verification code", "otp", "one time password", "one time code", "security code", "passcode"}},
	{FieldHearAboutUs, []string{"hear about us", "hear about this", "how did you hear", "how did you find", "referral source"}},
	{FieldHearAboutUsPlatform, []string{"social media platform", "which social media", "which platform"}},
	{FieldAppliedBefore, []string{"applied in the past", "applied before", "previously applied", "applied to this company"}},
	{FieldYearsExperience, []string{"years of experience", "years experience", "total experience", "how many years"}},
}

// AllFieldKeys returns every recognised key in table order.
func AllFieldKeys() []FieldKey {
	keys := make([]FieldKey, 0, len(fieldPatterns))
	for _, fp := range fieldPatterns {
		keys = append(keys, fp.key)
	}
	return keys
}

// KeyFromMeta classifies an input from its label, placeholder and attribute
// text. inputType is the input's type attribute and breaks no-match cases
// for email and tel inputs. Unrecognised inputs yield FieldUnknown.
func KeyFromMeta(meta, inputType string) FieldKey {
	inputType = strings.ToLower(strings.TrimSpace(inputType))
	switch inputType {
	case "file", "password", "hidden", "submit", "button":
		return FieldUnknown
	}

	text := " " + normalizeMeta(meta) + " "
	best, bestLen := FieldUnknown, 0
	for _, fp := range fieldPatterns {
		for _, p := range fp.patterns {
			if len(p) > bestLen && strings.Contains(text, " "+p+" ") {
				best, bestLen = fp.key, len(p)
			}
		}
	}
	if best != FieldUnknown {
		return best
	}

	switch inputType {
	case "email":
		return FieldEmail
	case "tel":
		return FieldPhone
	}
	return FieldUnknown
}

// normalizeMeta lowercases s and replaces punctuation with single spaces.
func normalizeMeta(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase reports whether any phrase occurs in text on word boundaries.
func containsPhrase(text string, phrases []string) bool {
	padded := " " + normalizeMeta(text) + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+normalizeMeta(p)+" ") {
			return true
		}
	}
	return false
}
