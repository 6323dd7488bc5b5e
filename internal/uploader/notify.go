package uploader

import "log/slog"

// Notifier receives user-facing upload notifications. It replaces an ambient
// toast registry: callers inject one instead of reaching for global state.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
}

// SlogNotifier routes notifications to structured logging, the default for
// non-interactive callers.
type SlogNotifier struct {
	Logger *slog.Logger
}

func (n SlogNotifier) logger() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}

func (n SlogNotifier) Success(msg string) { n.logger().Info(msg, "level", "success") }
func (n SlogNotifier) Error(msg string)   { n.logger().Warn(msg) }
func (n SlogNotifier) Info(msg string)    { n.logger().Info(msg) }
