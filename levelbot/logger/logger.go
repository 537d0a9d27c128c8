package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
	TypeEvent   LogType = "EVT"
	TypeError   LogType = "ERR"
)

type CustomHandler struct {
	opts      *slog.HandlerOptions
	startTime time.Time
	attrs     []slog.Attr
	groups    []string
}

func NewHandler() *CustomHandler {
	return &CustomHandler{
		opts:      &slog.HandlerOptions{Level: slog.LevelDebug},
		startTime: time.Now(),
		attrs:     make([]slog.Attr, 0),
		groups:    make([]string, 0),
	}
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CustomHandler{
		opts:      h.opts,
		startTime: h.startTime,
		attrs:     append(h.attrs, attrs...),
		groups:    h.groups,
	}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	return &CustomHandler{
		opts:      h.opts,
		startTime: h.startTime,
		attrs:     h.attrs,
		groups:    append(h.groups, name),
	}
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	timestamp := time.Now().Format("15:04:05")

	var levelColor, levelText string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorPurple
		levelText = "DEBUG"
	case slog.LevelInfo:
		levelColor = colorGreen
		levelText = "INFO"
	case slog.LevelWarn:
		levelColor = colorYellow
		levelText = "WARN"
	case slog.LevelError:
		levelColor = colorRed
		levelText = "ERROR"
	}

	logType := getLogType(&r)

	var attrsStr strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "type" {
			fmt.Fprintf(&attrsStr, " %s=%v", a.Key, a.Value)
		}
		return true
	})
	for _, attr := range h.attrs {
		if attr.Key != "type" {
			fmt.Fprintf(&attrsStr, " %s=%v", attr.Key, attr.Value)
		}
	}

	fmt.Printf("%s[LevelBot] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		timestamp,
		levelColor,
		levelText,
		colorWhite,
		logType,
		r.Message,
		attrsStr.String(),
		colorReset,
	)

	return nil
}

func shouldSkipLog(r *slog.Record) bool {
	// Gateway chatter from disgo that drowns out everything else.
	skippedMessages := []string{
		"locking buckets",
		"unlocking buckets",
		"gateway event",
		"cleaning up bucket",
		"cleaned up rate limit buckets",
		"binary message received",
		"received gateway message",
		"opening gateway connection",
		"locking gateway rate limiter",
		"unlocking gateway rate limiter",
		"sending gateway command",
		"new request",
		"new response",
		"locking rest bucket",
		"unlocking rest bucket",
		"rate limit response headers",
		"sending heartbeat",
	}

	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func getLogType(r *slog.Record) LogType {
	var logType LogType = TypeSystem
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "type" {
			switch a.Value.String() {
			case "cmd":
				logType = TypeCommand
			case "db":
				logType = TypeDB
			case "event":
				logType = TypeEvent
			case "error":
				logType = TypeError
			}
			return false
		}
		return true
	})
	return logType
}
