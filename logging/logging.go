// Package logging provides structured logging for the coverage API.
// It wraps log/slog with a process-wide logging service that writes to the
// console and, when a log directory is available, to a daily log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LoggingService owns the configured logger and the open log file, if any.
type LoggingService struct {
	Logger  *slog.Logger
	logFile *os.File
}

// DefaultLoggingService starts as a console-only service so packages can log
// before InitLogger has run.
var DefaultLoggingService = NewLoggingService("", "info")

// InitLogger initializes the global logger instance. If the log directory
// cannot be created or opened, logging degrades to console only.
func InitLogger(logDir, level string) {
	DefaultLoggingService = NewLoggingService(logDir, level)
	slog.SetDefault(DefaultLoggingService.Logger)
}

// NewLoggingService builds a logging service writing to stdout and, when
// possible, to a date-stamped file under logDir.
func NewLoggingService(logDir, level string) *LoggingService {
	svc := &LoggingService{}

	writers := []io.Writer{os.Stdout}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err == nil {
			name := fmt.Sprintf("coverage-api-%s.log", time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, name),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				svc.logFile = file
				writers = append(writers, file)
			}
		}
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	svc.Logger = slog.New(handler)

	return svc
}

// Close releases the log file, if one was opened.
func (s *LoggingService) Close() {
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
	}
}

func parseLevel(level string) slog.Level {
	switch level {
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

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logAt(slog.LevelInfo, msg, args...)
}

func Error(msg string, args ...any) {
	logAt(slog.LevelError, msg, args...)
}

func Warn(msg string, args ...any) {
	logAt(slog.LevelWarn, msg, args...)
}

func Debug(msg string, args ...any) {
	logAt(slog.LevelDebug, msg, args...)
}

func logAt(level slog.Level, msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		fallback.Log(context.Background(), level, msg, args...)
		return
	}
	DefaultLoggingService.Logger.Log(context.Background(), level, msg, args...)
}
