package rendering

// TemplateError reports a resume template that could not be loaded, parsed or
// executed.
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string { return describe("template error", e.Message, e.Cause) }
func (e *TemplateError) Unwrap() error { return e.Cause }

// RenderError reports a failure outside the template itself, such as bad
// input or an unwritable output directory.
type RenderError struct {
	Message string
	Cause   error
}

func (e *RenderError) Error() string { return describe("render error", e.Message, e.Cause) }
func (e *RenderError) Unwrap() error { return e.Cause }

func describe(kind, message string, cause error) string {
	s := kind + ": " + message
	if cause != nil {
		s += ": " + cause.Error()
	}
	return s
}
