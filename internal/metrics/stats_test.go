package metrics

import (
	"context"
	"fmt"
	"testing"
	"time"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

func TestStatsHookTracksCounters(t *testing.T) {
	hook := NewStatsHook(fmt.Sprintf("test_%d", time.Now().UnixNano()))
	rec := &smsretry.Record{MessageID: "m1"}

	hook.OnSubmit(context.Background(), rec)
	hook.OnAttempt(context.Background(), rec, smsretry.TransientFailure)
	hook.OnRetry(context.Background(), rec, time.Now())
	hook.OnAttempt(context.Background(), rec, smsretry.Success)
	hook.OnSuccess(context.Background(), rec)
	hook.OnGatewayError(context.Background(), "put_active", "m1", fmt.Errorf("boom"))

	snap := hook.snapshot()
	if snap["submitted"] != 1 {
		t.Fatalf("submitted = %d, want 1", snap["submitted"])
	}
	if snap["attempted"] != 2 {
		t.Fatalf("attempted = %d, want 2", snap["attempted"])
	}
	if snap["retried"] != 1 {
		t.Fatalf("retried = %d, want 1", snap["retried"])
	}
	if snap["succeeded"] != 1 {
		t.Fatalf("succeeded = %d, want 1", snap["succeeded"])
	}
	if snap["gateway_errors"] != 1 {
		t.Fatalf("gateway_errors = %d, want 1", snap["gateway_errors"])
	}
}

func TestStatsHookTracksFailure(t *testing.T) {
	hook := NewStatsHook(fmt.Sprintf("test_%d", time.Now().UnixNano()))
	rec := &smsretry.Record{MessageID: "m2"}

	hook.OnFail(context.Background(), rec)

	snap := hook.snapshot()
	if snap["failed"] != 1 {
		t.Fatalf("failed = %d, want 1", snap["failed"])
	}
}

func TestNewStatsHookDefaultsPrefix(t *testing.T) {
	hook := NewStatsHook("")
	if hook == nil {
		t.Fatal("expected non-nil hook")
	}
}
