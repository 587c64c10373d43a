// Package metrics publishes engine counters via expvar.
package metrics

import (
	"context"
	"expvar"
	"fmt"
	"sync/atomic"
	"time"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// StatsHook publishes basic scheduler counters via expvar and implements
// smsretry.Hooks.
type StatsHook struct {
	submitted     atomic.Int64
	attempted     atomic.Int64
	succeeded     atomic.Int64
	retried       atomic.Int64
	failed        atomic.Int64
	gatewayErrors atomic.Int64
}

// NewStatsHook registers an expvar entry named "<prefix>_stats".
func NewStatsHook(prefix string) *StatsHook {
	if prefix == "" {
		prefix = "smsretry"
	}
	h := &StatsHook{}
	expvar.Publish(fmt.Sprintf("%s_stats", prefix), expvar.Func(func() any {
		return h.snapshot()
	}))
	return h
}

func (h *StatsHook) OnSubmit(_ context.Context, _ *smsretry.Record) {
	h.submitted.Add(1)
}

func (h *StatsHook) OnAttempt(_ context.Context, _ *smsretry.Record, _ smsretry.Outcome) {
	h.attempted.Add(1)
}

func (h *StatsHook) OnSuccess(_ context.Context, _ *smsretry.Record) {
	h.succeeded.Add(1)
}

func (h *StatsHook) OnRetry(_ context.Context, _ *smsretry.Record, _ time.Time) {
	h.retried.Add(1)
}

func (h *StatsHook) OnFail(_ context.Context, _ *smsretry.Record) {
	h.failed.Add(1)
}

func (h *StatsHook) OnGatewayError(_ context.Context, _ string, _ string, _ error) {
	h.gatewayErrors.Add(1)
}

func (h *StatsHook) snapshot() map[string]int64 {
	return map[string]int64{
		"submitted":      h.submitted.Load(),
		"attempted":      h.attempted.Load(),
		"succeeded":      h.succeeded.Load(),
		"retried":        h.retried.Load(),
		"failed":         h.failed.Load(),
		"gateway_errors": h.gatewayErrors.Load(),
	}
}

var _ smsretry.Hooks = (*StatsHook)(nil)
