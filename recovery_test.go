package smsretry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errGatewayUnavailable = errors.New("gateway unavailable")

func TestRecoverSeedsPendingRecords(t *testing.T) {
	gw := newMemGateway()
	ctx := context.Background()

	pending := &Record{MessageID: "p1", Status: StatusPending, NextRetryAt: 100, CreatedAt: 100}
	if err := gw.PutActive(ctx, pending); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
	stats, err := Recover(ctx, engine, gw, RecoveryOptions{})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if stats.Recovered != 1 || stats.Listed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	engine.mu.Lock()
	_, ok := engine.index["p1"]
	engine.mu.Unlock()
	if !ok {
		t.Fatal("expected p1 to be seeded into the engine index")
	}
}

func TestRecoverDiscardsStaleNonPendingDocuments(t *testing.T) {
	gw := newMemGateway()
	ctx := context.Background()

	stale := &Record{MessageID: "s1", Status: StatusSucceeded, NextRetryAt: 100, CreatedAt: 100}
	if err := gw.PutActive(ctx, stale); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
	stats, err := Recover(ctx, engine, gw, RecoveryOptions{})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if stats.Stale != 1 || stats.Recovered != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if gw.activeCount() != 0 {
		t.Fatal("expected the stale active document to be deleted")
	}
}

func TestRecoverDoesNotReissueActiveWrite(t *testing.T) {
	gw := newMemGateway()
	ctx := context.Background()

	pending := &Record{MessageID: "p1", Status: StatusPending, NextRetryAt: 100, CreatedAt: 100}
	if err := gw.PutActive(ctx, pending); err != nil {
		t.Fatalf("PutActive: %v", err)
	}
	before := len(gw.active)

	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
	if _, err := Recover(ctx, engine, gw, RecoveryOptions{}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	if len(gw.active) != before {
		t.Fatalf("recovery mutated the active document count: before=%d after=%d", before, len(gw.active))
	}
}

func TestRecoverPastDueRecordBecomesImmediatelyEligible(t *testing.T) {
	gw := newMemGateway()
	ctx := context.Background()

	// next_retry_at is far in the past relative to any real clock.
	pastDue := &Record{MessageID: "p1", Status: StatusPending, NextRetryAt: 1, CreatedAt: 1}
	if err := gw.PutActive(ctx, pastDue); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	hooks := newEventHooks()
	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{Hooks: hooks})
	if _, err := Recover(ctx, engine, gw, RecoveryOptions{}); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	engine.Start()
	defer engine.Shutdown()

	select {
	case rec := <-hooks.success:
		if rec.MessageID != "p1" {
			t.Fatalf("got success for %q, want p1", rec.MessageID)
		}
	case <-time.After(testTimeout):
		t.Fatal("past-due recovered record was never dispatched; no catch-up backoff should be applied")
	}
}

type failingGetGateway struct {
	*memGateway
	failIDs map[string]bool
}

func (g *failingGetGateway) GetActive(ctx context.Context, id string) (*Record, error) {
	if g.failIDs[id] {
		return nil, errGatewayUnavailable
	}
	return g.memGateway.GetActive(ctx, id)
}

func TestRecoverAbortsOnGetActiveFailureByDefault(t *testing.T) {
	gw := &failingGetGateway{memGateway: newMemGateway(), failIDs: map[string]bool{"bad": true}}
	ctx := context.Background()
	if err := gw.PutActive(ctx, &Record{MessageID: "bad", Status: StatusPending}); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
	_, err := Recover(ctx, engine, gw, RecoveryOptions{})
	if err == nil {
		t.Fatal("expected GetActive failure to abort recovery when AllowPartialRecovery is false")
	}
}

func TestRecoverSkipsFailedRecordsWhenPartialRecoveryAllowed(t *testing.T) {
	gw := &failingGetGateway{memGateway: newMemGateway(), failIDs: map[string]bool{"bad": true}}
	ctx := context.Background()
	if err := gw.PutActive(ctx, &Record{MessageID: "bad", Status: StatusPending}); err != nil {
		t.Fatalf("PutActive: %v", err)
	}
	if err := gw.PutActive(ctx, &Record{MessageID: "good", Status: StatusPending}); err != nil {
		t.Fatalf("PutActive: %v", err)
	}

	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
	stats, err := Recover(ctx, engine, gw, RecoveryOptions{AllowPartialRecovery: true})
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if stats.Skipped != 1 || stats.Recovered != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

type malformedGetGateway struct {
	*memGateway
	malformedIDs map[string]bool
}

func (g *malformedGetGateway) GetActive(ctx context.Context, id string) (*Record, error) {
	if g.malformedIDs[id] {
		return nil, &SerializationError{Key: id, Err: errors.New("invalid character")}
	}
	return g.memGateway.GetActive(ctx, id)
}

func TestRecoverAlwaysSkipsMalformedDocumentRegardlessOfFlag(t *testing.T) {
	for _, allowPartial := range []bool{false, true} {
		gw := &malformedGetGateway{memGateway: newMemGateway(), malformedIDs: map[string]bool{"torn": true}}
		ctx := context.Background()
		if err := gw.PutActive(ctx, &Record{MessageID: "torn", Status: StatusPending}); err != nil {
			t.Fatalf("PutActive: %v", err)
		}
		if err := gw.PutActive(ctx, &Record{MessageID: "good", Status: StatusPending, NextRetryAt: 100, CreatedAt: 100}); err != nil {
			t.Fatalf("PutActive: %v", err)
		}

		engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})
		stats, err := Recover(ctx, engine, gw, RecoveryOptions{AllowPartialRecovery: allowPartial})
		if err != nil {
			t.Fatalf("AllowPartialRecovery=%v: Recover returned an error for a malformed document, want it skipped: %v", allowPartial, err)
		}
		if stats.Skipped != 1 || stats.Recovered != 1 {
			t.Fatalf("AllowPartialRecovery=%v: stats = %+v, want Skipped=1 Recovered=1", allowPartial, stats)
		}

		engine.mu.Lock()
		_, recovered := engine.index["good"]
		_, leaked := engine.index["torn"]
		engine.mu.Unlock()
		if !recovered {
			t.Fatalf("AllowPartialRecovery=%v: expected the legitimately pending record to still be recovered", allowPartial)
		}
		if leaked {
			t.Fatalf("AllowPartialRecovery=%v: the malformed record must not be seeded into the engine", allowPartial)
		}
	}
}

type failingListGateway struct {
	*memGateway
}

func (g *failingListGateway) ListActive(context.Context) ([]string, error) {
	return nil, errGatewayUnavailable
}

func TestRecoverSurfacesListActiveFailure(t *testing.T) {
	gw := &failingListGateway{memGateway: newMemGateway()}
	engine := NewEngine(gw, &scriptedSender{outcomes: []Outcome{Success}}, Options{})

	_, err := Recover(context.Background(), engine, gw, RecoveryOptions{})
	if err == nil {
		t.Fatal("expected ListActive failure to be surfaced")
	}
}
