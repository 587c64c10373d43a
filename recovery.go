package smsretry

import (
	"context"
	"errors"
	"fmt"
)

// RecoveryOptions controls the startup recovery pass.
type RecoveryOptions struct {
	// AllowPartialRecovery, when true, logs and skips keys that fail to
	// load with a generic gateway/transport error, instead of aborting the
	// whole pass (spec.md §4.4: "a documented config flag"). A malformed
	// document (SerializationError) is always skipped regardless of this
	// flag; it is never retryable.
	AllowPartialRecovery bool
	Logger               Logger
}

func (o *RecoveryOptions) setDefaults() {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
}

// RecoveryStats summarizes one recovery pass.
type RecoveryStats struct {
	Listed    int
	Recovered int
	Stale     int
	Skipped   int
}

// Recover runs the startup recovery driver against gw and seeds e with every
// live PENDING record it finds, per spec.md §4.4. It must be called before
// e.Start so the first dispatch pass observes the seeded records. Recover
// does not itself start the engine's dispatcher.
func Recover(ctx context.Context, e *Engine, gw Gateway, opts RecoveryOptions) (RecoveryStats, error) {
	opts.setDefaults()
	var stats RecoveryStats

	messageIDs, err := gw.ListActive(ctx)
	if err != nil {
		return stats, &GatewayError{Op: "list_active", Err: err}
	}
	stats.Listed = len(messageIDs)

	for _, messageID := range messageIDs {
		rec, err := gw.GetActive(ctx, messageID)
		if err != nil {
			var serErr *SerializationError
			if errors.As(err, &serErr) {
				// A malformed document is always skipped, regardless of
				// AllowPartialRecovery: it can never become loadable by
				// retrying, and one torn write from a prior crash must not
				// block every other legitimately pending record.
				stats.Skipped++
				opts.Logger.Warn(ctx, "recovery: skipping malformed document %s: %v", messageID, err)
				continue
			}
			if opts.AllowPartialRecovery {
				stats.Skipped++
				opts.Logger.Warn(ctx, "recovery: skipping %s after load failure: %v", messageID, err)
				continue
			}
			return stats, fmt.Errorf("smsretry: recovery aborted at %q: %w", messageID, err)
		}

		if rec.Status != StatusPending {
			stats.Stale++
			if delErr := gw.DeleteActive(ctx, messageID); delErr != nil {
				opts.Logger.Warn(ctx, "recovery: failed to clean up stale active document %s: %v", messageID, delErr)
			}
			continue
		}

		// No catch-up backoff: a record already past due becomes
		// eligible immediately, it is not penalized for the downtime.
		e.Seed(rec)
		stats.Recovered++
	}

	opts.Logger.Info(ctx, "recovery: listed=%d recovered=%d stale=%d skipped=%d",
		stats.Listed, stats.Recovered, stats.Stale, stats.Skipped)

	return stats, nil
}
