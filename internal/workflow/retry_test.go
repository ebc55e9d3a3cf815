package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewClassifier_IsRetryable(t *testing.T) {
	c := DefaultReviewClassifier()

	tests := []struct {
		note string
		want bool
	}{
		{"Navigation timeout after 30s", true},
		{"Site temporarily unavailable", true},
		{"Page crashed while filling step 2", true},
		{"Network error: connection reset by peer", true},
		{"Form stalled on upload", true},
		{"Ready for final submission - review in browser.", false},
		{"Captcha challenge - complete it in the browser", false},
		{"Timeout waiting for captcha", false},
		{"Login required - sign in and retry", false},
		{"Filled external form; manual review required before final submit", false},
		{"Something unexpected happened", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.note, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsRetryable(tt.note))
		})
	}
}

func TestReviewClassifier_IsHardBlock(t *testing.T) {
	c := DefaultReviewClassifier()

	assert.True(t, c.IsHardBlock("Requires manual input: verification_code"))
	assert.True(t, c.IsHardBlock("CAPTCHA detected"))
	assert.True(t, c.IsHardBlock("Automation blocked by the site"))
	assert.True(t, c.IsHardBlock("Sign-in wall on apply page"))
	assert.False(t, c.IsHardBlock("Ready for final submission - review in browser."))
	assert.False(t, c.IsHardBlock("Navigation timeout"))
}

func TestReviewClassifier_CustomTokens(t *testing.T) {
	c := ReviewClassifier{
		NonRetryable: []string{"quota"},
		Retryable:    []string{"try again"},
	}

	assert.True(t, c.IsRetryable("Please TRY AGAIN later"))
	assert.False(t, c.IsRetryable("Quota exceeded, try again tomorrow"))
	assert.False(t, c.IsHardBlock("captcha"))
}
