package apply

import (
	"strings"
)

// Issue categories reported for automation blockers.
const (
	IssueVerificationCode = "verification_code_required"
	IssuePostalCode       = "postal_code_required"
	IssueCaptcha          = "captcha_required"
	IssueLogin            = "login_required"
	IssueUploadFailed     = "upload_failed"
	IssueMissingFields    = "missing_required_fields"
	IssueBlocked          = "blocked"
	IssueUnknown          = "unknown"
)

// Issue is a classified automation blocker.
type Issue struct {
	Category       string   `json:"category"`
	RequiredInputs []string `json:"required_user_inputs"`
	Questions      []string `json:"suggested_questions"`
	Message        string   `json:"message,omitempty"`
}

// IsZero reports whether no issue was classified.
func (i Issue) IsZero() bool {
	return i.Category == ""
}

// Details returns the blocker_details shape stored on the application.
func (i Issue) Details() map[string]any {
	return map[string]any{
		"category":             i.Category,
		"required_user_inputs": append([]string{}, i.RequiredInputs...),
		"suggested_questions":  append([]string{}, i.Questions...),
		"message":              i.Message,
	}
}

// Summary is the human-facing note for the issue.
func (i Issue) Summary() string {
	if len(i.RequiredInputs) > 0 {
		return "Requires manual input: " + strings.Join(i.RequiredInputs, ", ")
	}
	switch i.Category {
	case IssueCaptcha:
		return "Captcha challenge - complete it in the browser"
	case IssueLogin:
		return "Login required - sign in and retry"
	case IssueBlocked:
		return "Automation blocked by the site"
	case IssueUploadFailed:
		return "Resume upload failed"
	}
	return "Automation issue: " + i.Category
}

type issueRule struct {
	category  string
	phrases   []string
	inputs    []string
	questions []string
}

// issueRules is evaluated in order; the first match wins.
var issueRules = []issueRule{
	{
		category:  IssueVerificationCode,
		phrases:   []string{"verification code", "otp", "one time password", "one-time password", "security code", "enter the code"},
		inputs:    []string{string(FieldVerificationCode)},
		questions: []string{"What is the verification code sent to your email or phone?"},
	},
	{
		category:  IssuePostalCode,
		phrases:   []string{"postal code", "zip code", "pin code", "pincode", "postcode"},
		inputs:    []string{string(FieldPostalCode)},
		questions: []string{"What postal code should be used for this application?"},
	},
	{
		category:  IssueCaptcha,
		phrases:   []string{"captcha", "recaptcha", "hcaptcha", "i'm not a robot", "verify you are human"},
		questions: []string{"Please solve the captcha in the browser and retry."},
	},
	{
		category:  IssueLogin,
		phrases:   []string{"sign in", "log in", "login required", "login", "create an account", "session expired"},
		questions: []string{"Please sign in to the job site and retry."},
	},
	{
		category:  IssueUploadFailed,
		phrases:   []string{"upload failed", "failed to upload", "file upload", "could not upload", "unsupported file"},
		questions: []string{"Please upload the resume manually."},
	},
	{
		category:  IssueMissingFields,
		phrases:   []string{"required field", "this field is required", "please fill", "missing required", "is required"},
		questions: []string{"Which answers should be used for the remaining required fields?"},
	},
	{
		category:  IssueBlocked,
		phrases:   []string{"anti-bot", "blocked", "access denied", "forbidden", "unusual traffic"},
		questions: []string{"Please apply manually; the site blocked automation."},
	},
}

// ClassifyIssue maps failure or page text to an issue category.
func ClassifyIssue(text string) Issue {
	msg := strings.TrimSpace(text)
	for _, rule := range issueRules {
		if containsPhrase(msg, rule.phrases) {
			return Issue{
				Category:       rule.category,
				RequiredInputs: append([]string{}, rule.inputs...),
				Questions:      append([]string{}, rule.questions...),
				Message:        msg,
			}
		}
	}
	return Issue{
		Category:       IssueUnknown,
		RequiredInputs: []string{},
		Questions:      []string{},
		Message:        msg,
	}
}

// IsHardBlocker reports whether category needs a human before any retry.
func IsHardBlocker(category string) bool {
	switch category {
	case IssueVerificationCode, IssueCaptcha, IssueLogin, IssueBlocked:
		return true
	}
	return false
}

var successPhrases = []string{
	"application submitted",
	"already applied",
	"thank you for applying",
	"your application has been received",
	"application received",
	"application has been submitted",
	"your application was sent",
}

// DetectSuccess reports whether page text confirms a submission.
func DetectSuccess(text string) bool {
	return containsPhrase(text, successPhrases)
}
