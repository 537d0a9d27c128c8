package logger

import "log/slog"

// LogEvent logs domain event dispatch
func LogEvent(name string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "event"), slog.String("event", name)}
	slog.Info("Event dispatched", append(baseAttrs, attrs...)...)
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
