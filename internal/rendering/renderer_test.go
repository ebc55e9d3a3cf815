package rendering

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/apply-agent/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResume() *types.ParsedResume {
	return &types.ParsedResume{
		Name:    "Asha Rao",
		Email:   "asha@example.com",
		Phone:   "9319135101",
		Summary: "Backend engineer <Go & Postgres>",
		Skills:  []string{"Go", "PostgreSQL", "C#"},
		Experience: []types.ResumePosition{{
			Title: "Senior Engineer", Company: "Acme", StartDate: "2021", EndDate: "Present",
			Bullets: []string{"Cut p99 latency by 40%"},
		}},
		Education: []types.EducationEntry{{Institution: "IIT Delhi", Degree: "B.Tech", Year: "2016"}},
	}
}

func TestHTMLRenderer_WritesEscapedFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewHTMLRenderer(dir)
	require.NoError(t, err)

	path, err := r.Render(context.Background(), sampleResume(), "tailored_1_job_2.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tailored_1_job_2.html"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(content)
	assert.Contains(t, html, "<h1>Asha Rao</h1>")
	assert.Contains(t, html, "asha@example.com | 9319135101")
	assert.Contains(t, html, "Backend engineer &lt;Go &amp; Postgres&gt;")
	assert.Contains(t, html, "<li>Cut p99 latency by 40%</li>")
	assert.Contains(t, html, "Go, PostgreSQL, C#")
}

func TestLaTeXRenderer_EscapesSpecialCharacters(t *testing.T) {
	dir := t.TempDir()
	r, err := NewLaTeXRenderer(dir, "")
	require.NoError(t, err)

	path, err := r.Render(context.Background(), sampleResume(), "tailored")
	require.NoError(t, err)
	assert.Equal(t, ".tex", filepath.Ext(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	tex := string(content)
	assert.Contains(t, tex, `\textbf{Asha Rao}`)
	assert.Contains(t, tex, `Cut p99 latency by 40\%`)
	assert.Contains(t, tex, `Go, PostgreSQL, C\#`)
	assert.Contains(t, tex, `Backend engineer <Go \& Postgres>`)
}

func TestLaTeXRenderer_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "custom.tex")
	require.NoError(t, os.WriteFile(templatePath, []byte(`Name: {{escape .Name}}`), 0o644))

	r, err := NewLaTeXRenderer(dir, templatePath)
	require.NoError(t, err)
	path, err := r.Render(context.Background(), &types.ParsedResume{Name: "A_B"}, "out")
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `Name: A\_B`, string(content))
}

func TestLaTeXRenderer_MissingTemplate(t *testing.T) {
	_, err := NewLaTeXRenderer(t.TempDir(), "/nonexistent/template.tex")
	var templateErr *TemplateError
	require.ErrorAs(t, err, &templateErr)
	assert.Contains(t, err.Error(), "template file not found")
}

func TestLaTeXRenderer_InvalidTemplate(t *testing.T) {
	dir := t.TempDir()
	templatePath := filepath.Join(dir, "invalid.tex")
	require.NoError(t, os.WriteFile(templatePath, []byte(`{{.InvalidSyntax{{}}`), 0o644))

	_, err := NewLaTeXRenderer(dir, templatePath)
	var templateErr *TemplateError
	assert.ErrorAs(t, err, &templateErr)
}

func TestRender_NilResume(t *testing.T) {
	r, err := NewHTMLRenderer(t.TempDir())
	require.NoError(t, err)
	_, err = r.Render(context.Background(), nil, "x")
	var renderErr *RenderError
	assert.ErrorAs(t, err, &renderErr)
}

func TestNew(t *testing.T) {
	_, err := New("html", t.TempDir(), "")
	assert.NoError(t, err)
	_, err = New("LaTeX", t.TempDir(), "")
	assert.NoError(t, err)
	_, err = New("docx", t.TempDir(), "")
	assert.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "tailored_1_job_2", sanitizeName("tailored_1_job_2.pdf"))
	assert.Equal(t, "a_b", sanitizeName("../a b"))
	assert.Equal(t, "resume", sanitizeName(""))
}
