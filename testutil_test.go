package smsretry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memGateway is an in-memory Gateway for tests, with optional failure
// injection so gatewayRetry's backoff-and-rollback path can be exercised.
type memGateway struct {
	mu      sync.Mutex
	active  map[string]*Record
	success []*Record
	failed  []*Record

	putActiveFailures int // number of PutActive calls to fail before succeeding
}

func newMemGateway() *memGateway {
	return &memGateway{active: make(map[string]*Record)}
}

func (g *memGateway) PutActive(_ context.Context, rec *Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.putActiveFailures > 0 {
		g.putActiveFailures--
		return errors.New("injected put_active failure")
	}
	g.active[rec.MessageID] = rec.clone()
	return nil
}

func (g *memGateway) GetActive(_ context.Context, id string) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.active[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return rec.clone(), nil
}

func (g *memGateway) DeleteActive(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, id)
	return nil
}

func (g *memGateway) ListActive(_ context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *memGateway) PutSuccess(_ context.Context, rec *Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.success = append(g.success, rec.clone())
	return nil
}

func (g *memGateway) PutFailed(_ context.Context, rec *Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = append(g.failed, rec.clone())
	return nil
}

func (g *memGateway) ListRecentSuccess(_ context.Context, limit int) ([]*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return capRecords(g.success, limit), nil
}

func (g *memGateway) ListRecentFailed(_ context.Context, limit int) ([]*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return capRecords(g.failed, limit), nil
}

func (g *memGateway) activeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

func capRecords(recs []*Record, limit int) []*Record {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

// eventHooks forwards lifecycle events onto buffered channels for tests to
// synchronize against, instead of polling Stats() on a timer.
type eventHooks struct {
	success chan *Record
	retry   chan *Record
	fail    chan *Record
}

func newEventHooks() *eventHooks {
	return &eventHooks{
		success: make(chan *Record, 64),
		retry:   make(chan *Record, 64),
		fail:    make(chan *Record, 64),
	}
}

func (h *eventHooks) OnSubmit(context.Context, *Record)                     {}
func (h *eventHooks) OnAttempt(context.Context, *Record, Outcome)           {}
func (h *eventHooks) OnSuccess(_ context.Context, rec *Record)              { h.success <- rec }
func (h *eventHooks) OnRetry(_ context.Context, rec *Record, _ time.Time)   { h.retry <- rec }
func (h *eventHooks) OnFail(_ context.Context, rec *Record)                 { h.fail <- rec }
func (h *eventHooks) OnGatewayError(context.Context, string, string, error) {}

var _ Hooks = (*eventHooks)(nil)
