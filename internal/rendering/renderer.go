// Package rendering writes tailored resumes to disk as HTML or LaTeX.
package rendering

import (
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Supported output formats.
const (
	FormatHTML  = "html"
	FormatLaTeX = "latex"
)

// Renderer writes a resume file and returns its path.
type Renderer interface {
	Render(ctx context.Context, resume *types.ParsedResume, baseName string) (string, error)
}

// TemplateData is passed to resume templates.
type TemplateData struct {
	Name       string
	Contact    []string
	Summary    string
	Skills     []string
	Experience []types.ResumePosition
	Education  []types.EducationEntry
}

func newTemplateData(resume *types.ParsedResume) TemplateData {
	var contact []string
	for _, c := range []string{resume.Email, resume.Phone} {
		if strings.TrimSpace(c) != "" {
			contact = append(contact, c)
		}
	}
	return TemplateData{
		Name:       resume.Name,
		Contact:    contact,
		Summary:    resume.Summary,
		Skills:     resume.Skills,
		Experience: resume.Experience,
		Education:  resume.Education,
	}
}

type executor interface {
	Execute(w io.Writer, data any) error
}

// fileRenderer executes a template into OutputDir/baseName+ext.
type fileRenderer struct {
	outputDir string
	ext       string
	tmpl      executor
}

func (r *fileRenderer) Render(ctx context.Context, resume *types.ParsedResume, baseName string) (string, error) {
	if resume == nil {
		return "", &RenderError{Message: "no resume data to render"}
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", &RenderError{Message: "failed to create output directory", Cause: err}
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, newTemplateData(resume)); err != nil {
		return "", &TemplateError{Message: "failed to execute template", Cause: err}
	}

	path := filepath.Join(r.outputDir, sanitizeName(baseName)+r.ext)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", &RenderError{Message: fmt.Sprintf("failed to write %s", path), Cause: err}
	}
	logger.FromContext(ctx).Debug("Rendered resume", logger.String("path", path))
	return path, nil
}

// NewHTMLRenderer renders with the embedded HTML template.
func NewHTMLRenderer(outputDir string) (Renderer, error) {
	content, err := templateFS.ReadFile("templates/resume.html.tmpl")
	if err != nil {
		return nil, &TemplateError{Message: "embedded HTML template missing", Cause: err}
	}
	tmpl, err := htmltemplate.New("resume").Funcs(htmltemplate.FuncMap{
		"join": strings.Join,
	}).Parse(string(content))
	if err != nil {
		return nil, &TemplateError{Message: "failed to parse template", Cause: err}
	}
	return &fileRenderer{outputDir: outputDir, ext: ".html", tmpl: tmpl}, nil
}

// NewLaTeXRenderer renders with templatePath, or the embedded LaTeX template when empty.
func NewLaTeXRenderer(outputDir, templatePath string) (Renderer, error) {
	var (
		content []byte
		err     error
	)
	if templatePath == "" {
		content, err = templateFS.ReadFile("templates/resume.tex.tmpl")
	} else {
		content, err = readTemplate(templatePath)
	}
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("resume").Funcs(template.FuncMap{
		"escape": EscapeLaTeX,
		"join":   strings.Join,
	}).Parse(string(content))
	if err != nil {
		return nil, &TemplateError{Message: "failed to parse template", Cause: err}
	}
	return &fileRenderer{outputDir: outputDir, ext: ".tex", tmpl: tmpl}, nil
}

// New returns the renderer for format.
func New(format, outputDir, templatePath string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatHTML:
		return NewHTMLRenderer(outputDir)
	case FormatLaTeX:
		return NewLaTeXRenderer(outputDir, templatePath)
	default:
		return nil, &RenderError{Message: fmt.Sprintf("unsupported resume format %q", format)}
	}
}

func readTemplate(templatePath string) ([]byte, error) {
	content, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TemplateError{
				Message: fmt.Sprintf("template file not found: %s", templatePath),
				Cause:   err,
			}
		}
		return nil, &TemplateError{
			Message: fmt.Sprintf("failed to read template file: %s", templatePath),
			Cause:   err,
		}
	}
	return content, nil
}

// sanitizeName keeps file names to letters, digits, dash, underscore and dot.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) {
		return "resume"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "resume"
	}
	return b.String()
}
