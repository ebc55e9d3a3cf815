package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-agent/internal/types"
)

func TestParseJobAttributes(t *testing.T) {
	job := &types.JobPosting{
		Title:       "Customer Success Lead",
		Company:     "Acme",
		Location:    "Remote - India",
		Source:      "linkedin",
		Description: "Own customer success for enterprise accounts. Strong CRM and SQL skills. Minimum of 4 years in SaaS.",
	}

	attrs := ParseJobAttributes(job)

	assert.Equal(t, "Customer Success Lead", attrs.Title)
	assert.True(t, attrs.Remote)
	assert.Equal(t, []string{"customer success", "crm", "sql"}, attrs.Requirements)
	require.NotNil(t, attrs.YearsRequired)
	assert.Equal(t, 4, *attrs.YearsRequired)
	assert.NotEmpty(t, attrs.Keywords)

	m := attrs.Map()
	assert.Equal(t, 4, m["years_required"])
	assert.Equal(t, "linkedin", m["source"])
}

func TestParseJobAttributes_EmptyDescription(t *testing.T) {
	attrs := ParseJobAttributes(&types.JobPosting{Title: "Engineer", WorkType: types.WorkTypeRemote})

	assert.True(t, attrs.Remote)
	assert.Empty(t, attrs.Requirements)
	assert.Nil(t, attrs.YearsRequired)
	assert.NotContains(t, attrs.Map(), "years_required")
}
