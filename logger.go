package smsretry

import "context"

// Logger captures engine diagnostics; wrap slog/zap/etc. to plug in a real
// backend.
type Logger interface {
	Info(ctx context.Context, format string, v ...any)
	Warn(ctx context.Context, format string, v ...any)
	Error(ctx context.Context, format string, v ...any)
}

// noopLogger discards all engine logs.
type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...any)  {}
func (noopLogger) Warn(context.Context, string, ...any)  {}
func (noopLogger) Error(context.Context, string, ...any) {}
