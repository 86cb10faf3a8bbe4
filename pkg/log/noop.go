package log

// NoopLogger drops every line. Library users get it when they pass no
// logger, and tests use it to keep output quiet.
type NoopLogger struct{}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
