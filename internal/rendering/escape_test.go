package rendering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLaTeX(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "plain text", input: "Senior Backend Engineer", want: "Senior Backend Engineer"},
		{name: "backslash", input: `C:\jobs`, want: `C:\textbackslash{}jobs`},
		{name: "braces", input: "{remote}", want: `\{remote\}`},
		{name: "salary", input: "$150k & equity", want: `\$150k \& equity`},
		{name: "percent and hash", input: "top 1% #1", want: `top 1\% \#1`},
		{name: "caret and tilde", input: "x^2 ~3", want: `x\textasciicircum{}2 \textasciitilde{}3`},
		{name: "underscore", input: "snake_case", want: `snake\_case`},
		{
			name:  "all specials",
			input: "${}~&%#^_\\",
			want:  `\$\{\}\textasciitilde{}\&\%\#\textasciicircum{}\_\textbackslash{}`,
		},
		{name: "unicode passes through", input: "Zürich · São Paulo", want: "Zürich · São Paulo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeLaTeX(tt.input))
		})
	}
}
