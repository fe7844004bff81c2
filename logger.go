package arbordb

// Logger receives engine events such as open, close, root splits, root
// collapses and rolled back operations. Its method set matches slog.Logger,
// and package logger adapts logrus and zap to it.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// DiscardLogger is the default logger and drops everything.
type DiscardLogger struct{}

func (DiscardLogger) Error(string, ...any) {}

func (DiscardLogger) Warn(string, ...any) {}

func (DiscardLogger) Info(string, ...any) {}
