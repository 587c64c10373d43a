// Package logging adapts log/slog to smsretry.Logger.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// SlogLogger implements smsretry.Logger by formatting each call's
// printf-style message and forwarding it to an underlying *slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// New builds a SlogLogger writing to stderr as text, at the given level
// (INFO, WARN, ERROR, DEBUG; unrecognized values fall back to INFO).
func New(level string) *SlogLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)})
	return &SlogLogger{logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Info(ctx context.Context, format string, v ...any) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, v...))
}

func (l *SlogLogger) Warn(ctx context.Context, format string, v ...any) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, v...))
}

func (l *SlogLogger) Error(ctx context.Context, format string, v ...any) {
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, v...))
}

var _ smsretry.Logger = (*SlogLogger)(nil)
