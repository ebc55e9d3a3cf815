package workflow

import (
	"strings"
	"time"
)

// DefaultRetryBackoff is the pause between submission attempts.
const DefaultRetryBackoff = time.Second

// DefaultHardBlockTokens mark review notes that need a human before any
// further attempt.
var DefaultHardBlockTokens = []string{
	"verification code",
	"captcha",
	"sign-in",
	"login required",
	"anti-bot",
	"blocked by the site",
	"manual",
}

// DefaultNonRetryableTokens mark review notes that another attempt cannot fix.
var DefaultNonRetryableTokens = []string{
	"manual review",
	"no final submit control",
	"could not locate final submit button",
	"ready for final submission",
	"captcha",
	"anti-bot",
	"verification code",
	"login required",
	"sign-in",
	"blocked by anti-bot",
	"requires manual",
	"unsupported source",
}

// DefaultRetryableTokens mark review notes caused by transient failures.
var DefaultRetryableTokens = []string{
	"timeout",
	"temporar",
	"page crashed",
	"renderer crashed",
	"connection reset",
	"network",
	"stalled",
	"retry",
}

// ReviewClassifier decides what to do with an attempt that ended in review.
// Matching is case-insensitive substring matching on the note.
type ReviewClassifier struct {
	HardBlock    []string
	NonRetryable []string
	Retryable    []string
}

// DefaultReviewClassifier returns a classifier with the default token lists.
func DefaultReviewClassifier() ReviewClassifier {
	return ReviewClassifier{
		HardBlock:    DefaultHardBlockTokens,
		NonRetryable: DefaultNonRetryableTokens,
		Retryable:    DefaultRetryableTokens,
	}
}

// IsHardBlock reports whether note requires manual intervention.
func (c ReviewClassifier) IsHardBlock(note string) bool {
	return containsAny(note, c.HardBlock)
}

// IsRetryable reports whether note names a transient failure. Notes that
// match no token are not retryable.
func (c ReviewClassifier) IsRetryable(note string) bool {
	if strings.TrimSpace(note) == "" {
		return false
	}
	if containsAny(note, c.NonRetryable) {
		return false
	}
	return containsAny(note, c.Retryable)
}

func containsAny(text string, tokens []string) bool {
	text = strings.ToLower(text)
	for _, t := range tokens {
		if t != "" && strings.Contains(text, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
