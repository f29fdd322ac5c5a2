// Package logger provides the component-scoped logging helpers used across
// the codebase, backed by log/slog with a tinted console handler and optional
// rotated file output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level and optional file output with rotation.
type Config struct {
	Level      string `yaml:"level" env:"HERMOD_LOG_LEVEL"`
	Dir        string `yaml:"dir" env:"HERMOD_LOG_DIR"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"HERMOD_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"HERMOD_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"HERMOD_LOG_MAX_AGE_DAYS"`
	Compress   bool   `yaml:"compress" env:"HERMOD_LOG_COMPRESS"`
}

// Setup installs the process-wide default logger. When cfg.Dir is set, output
// is mirrored to a rotated file.
func Setup(cfg Config) (*slog.Logger, error) {
	level := parseLevel(cfg.Level)

	var w io.Writer = os.Stdout
	noColor := false
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		maxSize, maxBackups, maxAge := cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays
		if maxSize <= 0 {
			maxSize = 50
		}
		if maxBackups <= 0 {
			maxBackups = 5
		}
		if maxAge <= 0 {
			maxAge = 14
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "hermod.log"),
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   cfg.Compress,
		})
		noColor = true
	}

	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}))
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// C returns a logger scoped to a component.
func C(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string, args ...any) { C(component).Debug(msg, args...) }

// InfoC logs an info message for a component.
func InfoC(component, msg string, args ...any) { C(component).Info(msg, args...) }

// WarnC logs a warning for a component.
func WarnC(component, msg string, args ...any) { C(component).Warn(msg, args...) }

// ErrorC logs an error for a component.
func ErrorC(component, msg string, args ...any) { C(component).Error(msg, args...) }

// WarnCF logs a warning with a field map.
func WarnCF(component, msg string, fields map[string]any) {
	C(component).Warn(msg, fieldsToArgs(fields)...)
}

// ErrorCF logs an error with a field map.
func ErrorCF(component, msg string, fields map[string]any) {
	C(component).Error(msg, fieldsToArgs(fields)...)
}

func fieldsToArgs(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return args
}
