package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := migrationsFS.ReadFile("migrations/" + entries[0].Name())
	require.NoError(t, err)
	sql := string(data)

	for _, table := range []string{
		"candidate_profiles",
		"job_postings",
		"applications",
		"resumes",
		"resume_versions",
		"autonomous_runs",
		"autonomous_job_logs",
		"automation_issue_events",
	} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table, "missing table %s", table)
	}
	assert.True(t, strings.Contains(sql, "idx_applications_job_id ON applications(job_id)"),
		"applications must be unique per job")
}

func TestMarshalJSONB(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		fallback string
		want     string
	}{
		{"nil map", map[string]any(nil), "{}", "{}"},
		{"nil slice", []string(nil), "[]", "[]"},
		{"map", map[string]any{"a": 1}, "{}", `{"a":1}`},
		{"slice", []string{"x"}, "[]", `["x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := marshalJSONB(tt.value, tt.fallback)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestUnmarshalHelpers(t *testing.T) {
	assert.Nil(t, unmarshalMap(nil))
	assert.Nil(t, unmarshalMap([]byte("not json")))
	assert.Equal(t, map[string]any{"job_id": "x"}, unmarshalMap([]byte(`{"job_id":"x"}`)))

	assert.Nil(t, unmarshalStrings(nil))
	assert.Equal(t, []string{"go", "sql"}, unmarshalStrings([]byte(`["go","sql"]`)))
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("boom"))
	assert.Equal(t, "boom", *nullString("boom"))
	assert.Equal(t, "", derefString(nil))
}
