package smsretry

import (
	"testing"
	"time"
)

func TestDefaultPolicyTable(t *testing.T) {
	created := time.Unix(1000, 0)
	want := []float64{0, 60, 300, 1800, 7200, 21600}

	for attempts, delay := range want {
		next, ok := DefaultPolicy(created, attempts)
		if !ok {
			t.Fatalf("attempts=%d: expected ok=true", attempts)
		}
		got := next.Sub(created)
		if got != time.Duration(delay)*time.Second {
			t.Fatalf("attempts=%d: delay = %v, want %ds", attempts, got, int(delay))
		}
	}

	if _, ok := DefaultPolicy(created, len(want)); ok {
		t.Fatalf("attempts=%d: expected terminal (ok=false)", len(want))
	}
}

func TestDefaultPolicyNextTimeIsAbsoluteFromCreatedAt(t *testing.T) {
	created := time.Unix(1000, 0)
	next, ok := DefaultPolicy(created, 2)
	if !ok {
		t.Fatal("expected ok=true")
	}
	// Recomputed from created_at, not from any prior next_retry_at: calling
	// again with the same inputs must be idempotent.
	again, ok := DefaultPolicy(created, 2)
	if !ok || !again.Equal(next) {
		t.Fatalf("policy is not a pure function of (created_at, attempts_completed)")
	}
}

func TestDefaultPolicyWithMaxOverridesTermination(t *testing.T) {
	created := time.Unix(0, 0)
	policy := DefaultPolicyWithMax(2)

	if _, ok := policy(created, 2); !ok {
		t.Fatal("attempts=2 should still be eligible when max=2")
	}
	if _, ok := policy(created, 3); ok {
		t.Fatal("attempts=3 should be terminal when max=2")
	}
}

func TestGeometricPolicyMonotonicAndBounded(t *testing.T) {
	created := time.Unix(0, 0)
	policy := GeometricPolicy(time.Second, 2.0, 30*time.Second, 5)

	var prev time.Duration
	for attempts := 0; attempts <= 5; attempts++ {
		next, ok := policy(created, attempts)
		if !ok {
			t.Fatalf("attempts=%d: expected ok=true", attempts)
		}
		delay := next.Sub(created)
		if attempts > 0 && delay < prev {
			t.Fatalf("attempts=%d: delay %v is less than previous %v", attempts, delay, prev)
		}
		if delay > 30*time.Second {
			t.Fatalf("attempts=%d: delay %v exceeds cap", attempts, delay)
		}
		prev = delay
	}

	if _, ok := policy(created, 6); ok {
		t.Fatal("attempts=6 should be terminal when maxAttempts=5")
	}
}

func TestGeometricPolicyFirstAttemptImmediate(t *testing.T) {
	created := time.Unix(500, 0)
	policy := GeometricPolicy(time.Second, 2.0, time.Minute, 3)
	next, ok := policy(created, 0)
	if !ok || !next.Equal(created) {
		t.Fatalf("attempt 0 should be scheduled at created_at, got %v (ok=%v)", next, ok)
	}
}
