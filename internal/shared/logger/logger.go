package logger

import (
	"io"
	"log/slog"
	"os"

	"livemap/internal/shared/config"
)

func Init() {
	if config.GlobalConfig == nil {
		panic("config must be initialized before logger")
	}

	logConfig := config.GlobalConfig.Logging
	slog.SetDefault(slog.New(newHandler(os.Stdout, logConfig)))

	logger := slog.With("component", "logger")
	logger.Debug("Logger initialized",
		"level", logConfig.Level,
		"json_format", logConfig.JSONFormat || logConfig.Format == "json",
		"environment", config.GlobalConfig.Server.Environment,
	)
}

// newHandler emits JSON in production or when LOG_FORMAT=json, text
// otherwise.
func newHandler(w io.Writer, logConfig config.LoggingConfig) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(logConfig.Level)}
	if logConfig.JSONFormat || logConfig.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
