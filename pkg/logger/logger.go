// Package logger wires the process-wide slog default: a console handler for
// humans, optionally fanned out to a JSON file for later inspection.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
)

// Preinit installs a console-only default logger so startup code can log
// before the config is loaded.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}

// Init replaces the default logger per config: console at the configured
// level, plus a JSON file handler when log.json_file is set.
func Init(level, jsonFile string) error {
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: parseLevel(level),
	}))

	if jsonFile != "" {
		if err := os.MkdirAll(filepath.Dir(jsonFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(jsonFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		router = router.Add(slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level: parseLevel(level),
		}))
	}

	slog.SetDefault(slog.New(router.Handler()))
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
