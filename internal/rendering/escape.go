package rendering

import "strings"

// latexEscaper rewrites the ten characters LaTeX treats specially. Replacement
// is single pass, so the braces it emits are never escaped again.
var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	`^`, `\textasciicircum{}`,
	`~`, `\textasciitilde{}`,
	`{`, `\{`,
	`}`, `\}`,
	`$`, `\$`,
	`&`, `\&`,
	`%`, `\%`,
	`#`, `\#`,
	`_`, `\_`,
)

// EscapeLaTeX makes profile and job text safe to splice into a LaTeX template.
func EscapeLaTeX(text string) string {
	return latexEscaper.Replace(text)
}
