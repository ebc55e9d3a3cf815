package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("matching.json", "deep-match")
	require.NoError(t, err)
	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "{{.JobDescription}}")
}

func TestGet_InvalidFile(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	ClearCache()

	_, err := Get("matching.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet_Panics(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet("nonexistent.json", "some-key")
	})
}

func TestMustGet_ValidPrompt(t *testing.T) {
	ClearCache()

	assert.NotPanics(t, func() {
		prompt := MustGet("matching.json", "deep-match")
		assert.NotEmpty(t, prompt)
	})
}

func TestFormat(t *testing.T) {
	template := "Hello {{.Name}}, welcome to {{.Company}}!"
	data := map[string]string{
		"Name":    "Alice",
		"Company": "Acme Corp",
	}

	result := Format(template, data)
	assert.Equal(t, "Hello Alice, welcome to Acme Corp!", result)
}

func TestFormat_NoPlaceholders(t *testing.T) {
	template := "No placeholders here"
	data := map[string]string{"Key": "Value"}

	result := Format(template, data)
	assert.Equal(t, template, result)
}

func TestFormat_EmptyData(t *testing.T) {
	template := "Hello {{.Name}}"
	data := map[string]string{}

	result := Format(template, data)
	assert.Equal(t, template, result) // Placeholder remains
}

func TestTailorSystemPromptForbidsFabrication(t *testing.T) {
	ClearCache()

	prompt := MustGet("tailoring.json", "tailor-system")
	assert.Contains(t, prompt, "NEVER fabricate")
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("tailoring.json")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tailor-system", "tailor-resume"}, keys)
}

func TestList_Sorted(t *testing.T) {
	ClearCache()

	keys, err := List("matching.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"deep-match", "deep-match-system"}, keys)

	_, err = List("missing.json")
	assert.Error(t, err)
}

func TestFormat_RealPrompt(t *testing.T) {
	ClearCache()

	tmpl := MustGet("matching.json", "deep-match")
	out := Format(tmpl, map[string]string{
		"JobTitle":       "Platform Engineer",
		"JobDescription": "Operate Kubernetes clusters",
		"Skills":         "go, kubernetes",
		"TargetRoles":    "platform engineer",
	})

	assert.Contains(t, out, "Job Title: Platform Engineer")
	assert.NotContains(t, out, "{{.")
}

func TestCaching(t *testing.T) {
	ClearCache()

	prompt1, err := Get("matching.json", "deep-match")
	require.NoError(t, err)
	_, cached := parsed.Load("matching.json")
	assert.True(t, cached)

	prompt2, err := Get("matching.json", "deep-match")
	require.NoError(t, err)
	assert.Equal(t, prompt1, prompt2)

	ClearCache()
	_, cached = parsed.Load("matching.json")
	assert.False(t, cached)
}
