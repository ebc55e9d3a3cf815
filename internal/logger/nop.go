package logger

// NopLogger discards every entry. Used in tests and as the zero-value logger.
type NopLogger struct{}

// NewNop returns a Logger that does nothing.
func NewNop() Logger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...Field) {}
func (*NopLogger) Info(string, ...Field)  {}
func (*NopLogger) Warn(string, ...Field)  {}
func (*NopLogger) Error(string, ...Field) {}
func (n *NopLogger) With(...Field) Logger { return n }
func (*NopLogger) Sync() error            { return nil }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return l
}
