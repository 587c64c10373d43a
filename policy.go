package smsretry

import "time"

// Policy maps an attempt count already completed for a record to the
// absolute time of its next attempt, given the record's creation time. It
// returns ok=false exactly when attemptsCompleted exceeds the policy's
// maximum, signalling the record is terminal.
type Policy func(createdAt time.Time, attemptsCompleted int) (next time.Time, ok bool)

// defaultDelayTable is the specified default retry schedule: seconds from
// created_at at which attempt i+1 (1-based) is due, indexed by attempts
// already completed. Attempt 0 (the initial send) is scheduled immediately.
var defaultDelayTable = []float64{0, 60, 300, 1800, 7200, 21600}

// DefaultMaxAttempts is the attempt count beyond which DefaultPolicy
// terminates a record (attempt_count > max => FAILED).
var DefaultMaxAttempts = len(defaultDelayTable) - 1

// DefaultPolicy is the specified default policy: a fixed, strictly
// monotonic delay table with zero first delay and deterministic
// termination once more than len(defaultDelayTable)-1 attempts have
// completed.
func DefaultPolicy(createdAt time.Time, attemptsCompleted int) (time.Time, bool) {
	if attemptsCompleted >= len(defaultDelayTable) {
		return time.Time{}, false
	}
	delay := time.Duration(defaultDelayTable[attemptsCompleted] * float64(time.Second))
	return createdAt.Add(delay), true
}

// DefaultPolicyWithMax behaves like DefaultPolicy but terminates after
// maxAttempts completed attempts instead of DefaultMaxAttempts, clamping the
// delay lookup to the last table entry for attempt indices beyond the
// table's own length. Used when the max_attempts configuration key
// overrides the built-in default.
func DefaultPolicyWithMax(maxAttempts int) Policy {
	table := defaultDelayTable
	return func(createdAt time.Time, attemptsCompleted int) (time.Time, bool) {
		if attemptsCompleted > maxAttempts {
			return time.Time{}, false
		}
		idx := attemptsCompleted
		if idx >= len(table) {
			idx = len(table) - 1
		}
		delay := time.Duration(table[idx] * float64(time.Second))
		return createdAt.Add(delay), true
	}
}

// GeometricPolicy builds a Policy from a bounded geometric progression:
// delay(0) = 0, delay(i) = min(base * factor^(i-1), max) for i >= 1,
// terminal once attemptsCompleted > maxAttempts. This mirrors the teacher's
// Exponential backoff helper, generalized into a full Policy so operators
// can swap in a parameterized schedule instead of DefaultPolicy's fixed
// table, as spec.md §3 allows.
func GeometricPolicy(base time.Duration, factor float64, max time.Duration, maxAttempts int) Policy {
	return func(createdAt time.Time, attemptsCompleted int) (time.Time, bool) {
		if attemptsCompleted > maxAttempts {
			return time.Time{}, false
		}
		if attemptsCompleted == 0 {
			return createdAt, true
		}
		d := float64(base)
		for i := 1; i < attemptsCompleted; i++ {
			d *= factor
			if time.Duration(d) >= max {
				d = float64(max)
				break
			}
		}
		delay := time.Duration(d)
		if delay > max {
			delay = max
		}
		if delay < base {
			delay = base
		}
		return createdAt.Add(delay), true
	}
}
