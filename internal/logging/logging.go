// Package logging builds the structured loggers used by echoprobe.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Levels and formats accepted by NewLogger.
var (
	Levels  = []string{"debug", "info", "warn", "error"}
	Formats = []string{"text", "json"}
)

// NewLogger creates a logger writing to stderr.
// Supported levels: debug, info, warn, error
// Supported formats: text, json
func NewLogger(level, format string) *slog.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger with a custom writer.
func NewLoggerWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one of Levels (or "warning").
func ValidLevel(level string) bool {
	l := strings.ToLower(level)
	return l == "warning" || contains(Levels, l)
}

// ValidFormat reports whether format is one of Formats.
func ValidFormat(format string) bool {
	return contains(Formats, strings.ToLower(format))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// NopLogger returns a logger that discards all output.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Common attribute keys for consistent logging.
const (
	KeyAddress    = "address"
	KeyFamily     = "family"
	KeyIdentifier = "id"
	KeySequence   = "seq"
	KeyTTL        = "ttl"
	KeyRTT        = "rtt"
	KeyBytes      = "bytes"
	KeyError      = "error"
	KeyComponent  = "component"
	KeyCount      = "count"
	KeyPath       = "path"
)
