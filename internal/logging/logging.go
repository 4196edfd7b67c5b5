package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process logger at the level named by ECOTRACK_LOG_LEVEL,
// installs it as the slog default, and returns it. Unrecognized level names
// fall back to info.
func Setup(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
