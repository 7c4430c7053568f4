package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init sets a JSON (default) or text slog handler on stdout based on format.
// Supported: "json" (default), "text".
func Init(service, format string) *slog.Logger {
	return InitWriter(os.Stdout, service, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service, format string) *slog.Logger {
	format = strings.ToLower(strings.TrimSpace(format))
	opts := &slog.HandlerOptions{Level: level()}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)

	if format != "" && format != "json" && format != "text" {
		logger.Warn("unknown log format, defaulting to json", "format", format)
	}
	return logger
}

// level reads LOG_LEVEL (debug, info, warn, error); info otherwise.
func level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return l
}
