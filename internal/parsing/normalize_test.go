package parsing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSkillName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Golang", "Go"},
		{"GOLANG", "Go"},
		{"go lang", "Go"},
		{"JS", "JavaScript"},
		{"ts", "TypeScript"},
		{"k8s", "Kubernetes"},
		{"reactjs", "React"},
		{"nodejs", "Node.js"},
		{"  postgres ", "PostgreSQL"},
		{"python", "Python"},
		{"PYTHON", "Python"},
		{"API", "API"},
		{"HTML", "HTML"},
		{"terraform", "Terraform"},
		{"éclair", "Éclair"},
		{"", ""},
		{"   ", ""},
		{"Distributed Systems", "Distributed Systems"},
		{"customer success", "customer success"},
		{"gRPC", "gRPC"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSkillName(tt.input))
		})
	}
}

func TestDedupeSkills(t *testing.T) {
	got := DedupeSkills([]string{"golang", "Go", "  ", "react.js", "ReactJS", "SQL", "sql", "ci-cd", "CI CD"})
	assert.Equal(t, []string{"Go", "React", "SQL", "Ci-cd"}, got)
}
