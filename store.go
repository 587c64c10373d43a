package smsretry

import "context"

// Gateway is the stateless façade over the object store bucket, hiding the
// bucket name and key-prefix configuration from the engine. Every write is a
// full-document overwrite; there is no partial update and no conditional
// write. Operations surface transport errors to the caller; the gateway
// itself never retries (the engine decides retry policy around gateway
// calls, per spec.md §7).
type Gateway interface {
	// PutActive writes the record under the active prefix, keyed by message
	// id.
	PutActive(ctx context.Context, rec *Record) error
	// GetActive fetches and deserializes a single active-prefix document.
	GetActive(ctx context.Context, messageID string) (*Record, error)
	// DeleteActive removes the active-prefix document; absence is not an
	// error.
	DeleteActive(ctx context.Context, messageID string) error
	// ListActive enumerates every message id with a document under the
	// active prefix, for use by the recovery driver only.
	ListActive(ctx context.Context) ([]string, error)
	// PutSuccess writes a terminal success document keyed so that listing
	// the success prefix yields chronological order.
	PutSuccess(ctx context.Context, rec *Record) error
	// PutFailed writes a terminal failed document keyed so that listing the
	// failed prefix yields chronological order.
	PutFailed(ctx context.Context, rec *Record) error
	// ListRecentSuccess returns up to limit of the most recently written
	// success documents, most recent first.
	ListRecentSuccess(ctx context.Context, limit int) ([]*Record, error)
	// ListRecentFailed returns up to limit of the most recently written
	// failed documents, most recent first.
	ListRecentFailed(ctx context.Context, limit int) ([]*Record, error)
}
