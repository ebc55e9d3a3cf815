package llm

import "strings"

// CleanJSONBlock reduces a model reply to the JSON value it carries. Fenced
// code blocks are unwrapped and any chatter before or after the first
// balanced object or array is dropped. Text with no JSON value is returned
// trimmed and otherwise untouched so the decoder reports the real error.
func CleanJSONBlock(text string) string {
	text = unfence(strings.TrimSpace(text))

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	var value string
	if text[start] == '{' {
		value = extractJSONObject(text[start:])
	} else {
		value = extractJSONArray(text[start:])
	}
	if value == "" {
		return text
	}
	return value
}

// unfence strips a surrounding ``` block and its optional language tag.
func unfence(text string) string {
	const fence = "```"
	if !strings.HasPrefix(text, fence) {
		return text
	}
	body := text[len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		tag := body[:nl]
		if !strings.ContainsAny(tag, " {[") {
			body = body[nl+1:]
		}
	}
	if end := strings.LastIndex(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func extractJSONObject(s string) string { return balanced(s, '{', '}') }

func extractJSONArray(s string) string { return balanced(s, '[', ']') }

// balanced returns the prefix of s spanning one complete open/close pair,
// ignoring delimiters inside string literals. It returns "" when s does not
// start with open or never closes.
func balanced(s string, open, close byte) string {
	if s == "" || s[0] != open {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
