package shared

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the default logger on stderr; stdout carries reports.
func InitLogger(format, level string) *slog.Logger {
	return InitLoggerTo(os.Stderr, format, level)
}

func InitLoggerTo(w io.Writer, format, level string) *slog.Logger {
	var h slog.Handler
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
