package smsretry

import (
	"context"
	"time"
)

// Hooks receives engine lifecycle events for observability backends (e.g.
// expvar, see internal/metrics). All methods are called synchronously from
// engine code; implementations must return promptly.
type Hooks interface {
	OnSubmit(ctx context.Context, rec *Record)
	OnAttempt(ctx context.Context, rec *Record, outcome Outcome)
	OnSuccess(ctx context.Context, rec *Record)
	OnRetry(ctx context.Context, rec *Record, nextRetryAt time.Time)
	OnFail(ctx context.Context, rec *Record)
	OnGatewayError(ctx context.Context, op string, messageID string, err error)
}

// noopHooks discards every event.
type noopHooks struct{}

func (noopHooks) OnSubmit(context.Context, *Record)                     {}
func (noopHooks) OnAttempt(context.Context, *Record, Outcome)           {}
func (noopHooks) OnSuccess(context.Context, *Record)                    {}
func (noopHooks) OnRetry(context.Context, *Record, time.Time)           {}
func (noopHooks) OnFail(context.Context, *Record)                       {}
func (noopHooks) OnGatewayError(context.Context, string, string, error) {}
