package smsretry

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Options configures an Engine. Zero values are replaced with defaults in
// NewEngine.
type Options struct {
	// BatchSize bounds how many due records a single dispatch iteration
	// pops from the heap, bounding peak memory (spec.md §4.1 step 6).
	BatchSize int
	// Policy computes each record's next attempt time. Defaults to
	// DefaultPolicy.
	Policy Policy
	// Logger emits structured diagnostics. Defaults to a no-op logger.
	Logger Logger
	// Clock supplies wall-clock time. Defaults to RealClock.
	Clock Clock
	// Hooks receives lifecycle events for observability backends. Defaults
	// to a no-op implementation.
	Hooks Hooks
	// GatewayRetryBase/Cap/MaxAttempts tune the bounded exponential backoff
	// applied to dispatcher-side gateway writes (spec.md §7, GatewayError).
	GatewayRetryBase        time.Duration
	GatewayRetryCap         time.Duration
	GatewayRetryMaxAttempts int
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.Policy == nil {
		o.Policy = DefaultPolicy
	}
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	if o.Hooks == nil {
		o.Hooks = noopHooks{}
	}
	if o.GatewayRetryBase <= 0 {
		o.GatewayRetryBase = 100 * time.Millisecond
	}
	if o.GatewayRetryCap <= 0 {
		o.GatewayRetryCap = 5 * time.Second
	}
	if o.GatewayRetryMaxAttempts <= 0 {
		o.GatewayRetryMaxAttempts = 5
	}
}

// Stats is a point-in-time snapshot of engine counters, taken under the
// engine mutex; the values are internally consistent but may be stale the
// instant after Stats returns (spec.md §4.1).
type Stats struct {
	Pending        int
	TotalSubmitted int64
	TotalSucceeded int64
	TotalFailed    int64
	NextDueAt      *float64
}

// Engine is the in-memory scheduling core: a time-ordered heap of pending
// attempts, a secondary id index, and a single background dispatcher that
// keeps both in lockstep with the object store. A single sync.Mutex guards
// every field below it; helpers whose names end in Locked expect it to be
// held already. The mutex is held across gateway writes (in Submit and the
// commit helpers) but never across a sender invocation.
type Engine struct {
	id     string
	gw     Gateway
	sender Sender
	opts   Options

	mu         sync.Mutex
	cond       *sync.Cond
	heap       recordHeap
	index      map[string]*heapEntry
	nextSeq    uint64
	shutdown   bool
	inFlight   int
	started    bool
	submitted  int64
	succeeded  int64
	failed     int64

	wg sync.WaitGroup
}

// NewEngine wires a Gateway and Sender with the given options. The engine
// does not start dispatching until Start is called (spec.md §9's "implicit
// singletons" note: construct explicitly, start explicitly).
func NewEngine(gw Gateway, sender Sender, opts Options) *Engine {
	opts.setDefaults()
	e := &Engine{
		id:     randomEngineID(),
		gw:     gw,
		sender: sender,
		opts:   opts,
		index:  make(map[string]*heapEntry),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start launches the background dispatch worker. It is safe to call once;
// seeded records (via Seed, used by the recovery driver) must be inserted
// before Start so the first dispatch pass sees them.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.startDispatcher()
}

// Seed inserts a record recovered from the object store directly into the
// heap and index, without re-issuing a gateway write (spec.md §4.4: restart
// must be idempotent against the object store).
func (e *Engine) Seed(rec *Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.insertLocked(rec)
}

func (e *Engine) insertLocked(rec *Record) *heapEntry {
	entry := &heapEntry{record: rec, seq: e.nextSeq}
	e.nextSeq++
	heap.Push(&e.heap, entry)
	e.index[rec.MessageID] = entry
	return entry
}

// Submit constructs a PENDING record for msg, persists it, and returns its
// identifier. Persistence happens before the caller observes success; on a
// gateway failure the in-memory insertion is rolled back so invariant 2
// (every in-memory PENDING record has a matching active document) always
// holds. The engine mutex is held across the gateway write, matching the
// baseline (non-latency-optimized) data flow in spec.md §2 and §4.1.
func (e *Engine) Submit(ctx context.Context, msg Message) (string, error) {
	if err := msg.validate(); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return "", ErrShutdownInProgress
	}

	now := e.opts.Clock.Now()
	rec := newRecord(msg, now)
	entry := e.insertLocked(rec)

	if err := e.gw.PutActive(ctx, rec); err != nil {
		delete(e.index, rec.MessageID)
		heap.Remove(&e.heap, entry.index)
		e.mu.Unlock()
		e.opts.Hooks.OnGatewayError(ctx, "put_active", rec.MessageID, err)
		return "", &GatewayError{Op: "put_active", MessageID: rec.MessageID, Err: err}
	}

	e.submitted++
	e.opts.Hooks.OnSubmit(ctx, rec)
	e.cond.Broadcast()
	e.mu.Unlock()
	return rec.MessageID, nil
}

// Wake is an idempotent hint that the dispatcher should re-examine the heap
// head. Safe to call from tests or administrative endpoints at any time.
func (e *Engine) Wake() {
	e.mu.Lock()
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Pending:        e.heap.Len(),
		TotalSubmitted: e.submitted,
		TotalSucceeded: e.succeeded,
		TotalFailed:    e.failed,
	}
	if e.heap.Len() > 0 {
		t := e.heap[0].record.NextRetryAt
		s.NextDueAt = &t
	}
	return s
}

// Shutdown stops accepting submissions and signals the dispatcher to exit
// once any in-flight sender invocations finish, then joins the worker. It
// does not flush the heap: pending records remain in the object store
// (their active documents are untouched) for the next recovery.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.shutdown = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
}

// startDispatcher launches the single background worker goroutine.
func (e *Engine) startDispatcher() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatchLoop()
	}()
}

// dispatchLoop implements spec.md §4.1's ten-step loop.
func (e *Engine) dispatchLoop() {
	ctx := context.Background()
	for {
		e.mu.Lock()
		exit := e.waitUntilWorkOrExit()
		if exit {
			e.mu.Unlock()
			return
		}
		now := e.opts.Clock.Now()
		batch := e.popDueBatchLocked(now)
		e.mu.Unlock()

		if len(batch) == 0 {
			continue
		}

		results := e.attemptBatch(ctx, batch)

		e.mu.Lock()
		attemptTime := e.opts.Clock.Now()
		for _, r := range results {
			e.applyResultLocked(ctx, r.record, r.outcome, attemptTime)
		}
		e.inFlight -= len(batch)
		e.cond.Broadcast()
		e.mu.Unlock()
	}
}

// waitUntilWorkOrExit must be called with e.mu held. It blocks on the
// condition variable until either the dispatcher should exit (shutdown
// requested and no attempts in flight) or the heap head is due. A timer
// bridges the bounded wait described in spec.md §4.1 step 5: Go's
// sync.Cond has no built-in timed wait, so a timer broadcasts the same
// condition variable once the head's due time arrives.
func (e *Engine) waitUntilWorkOrExit() (exit bool) {
	for {
		if e.shutdown && e.inFlight == 0 {
			return true
		}
		if e.heap.Len() == 0 {
			e.cond.Wait()
			continue
		}
		head := e.heap[0].record
		now := e.opts.Clock.Now()
		if !head.nextRetryTime().After(now) {
			return false
		}
		d := head.nextRetryTime().Sub(now)
		timer := time.AfterFunc(d, func() {
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		})
		e.cond.Wait()
		timer.Stop()
	}
}

// popDueBatchLocked must be called with e.mu held. It pops every record due
// at or before now, up to BatchSize, removing each from the heap and index.
// A popped record is momentarily absent from both structures while its
// attempt is in flight; it is still conceptually PENDING and reappears in
// the heap/index (rescheduled) or is retired to a terminal prefix once its
// result is applied.
func (e *Engine) popDueBatchLocked(now time.Time) []*Record {
	var batch []*Record
	for len(batch) < e.opts.BatchSize && e.heap.Len() > 0 {
		head := e.heap[0]
		if head.record.nextRetryTime().After(now) {
			break
		}
		entry := heap.Pop(&e.heap).(*heapEntry)
		delete(e.index, entry.record.MessageID)
		batch = append(batch, entry.record)
	}
	e.inFlight += len(batch)
	return batch
}

type attemptResult struct {
	record  *Record
	outcome Outcome
}

// attemptBatch invokes the sender for every record in the batch, outside
// the engine mutex, preserving submission-order fairness per record
// (spec.md §3 invariant 5, §8 property 3): records already come out of the
// heap in (next_retry_at, seq) order, and this loop attempts them in that
// same order.
func (e *Engine) attemptBatch(ctx context.Context, batch []*Record) []attemptResult {
	results := make([]attemptResult, len(batch))
	for i, rec := range batch {
		outcome := invokeSender(ctx, e.sender, rec.Message)
		e.opts.Hooks.OnAttempt(ctx, rec, outcome)
		results[i] = attemptResult{record: rec, outcome: outcome}
	}
	return results
}

// applyResultLocked must be called with e.mu held. It commits the outcome
// of one attempt: promote to a terminal prefix, or reschedule per Policy.
// Gateway writes retry locally with bounded backoff (spec.md §7); if every
// retry fails, the record is restored to the heap/index exactly as it was
// before this attempt, so no state is lost and the next dispatch pass will
// retry the whole transition.
func (e *Engine) applyResultLocked(ctx context.Context, rec *Record, outcome Outcome, now time.Time) {
	switch outcome {
	case Success:
		e.commitSuccessLocked(ctx, rec, now)
	case PermanentFailure:
		prior := rec.clone()
		rec.AttemptCount++
		e.commitFailedLocked(ctx, rec, prior, now)
	default: // TransientFailure
		e.commitRetryOrFailLocked(ctx, rec, now)
	}
}

func (e *Engine) commitSuccessLocked(ctx context.Context, rec *Record, now time.Time) {
	prior := rec.clone()
	rec.Status = StatusSucceeded
	rec.UpdatedAt = timeToUnix(now)

	err := e.gatewayRetry(ctx, func() error {
		if err := e.gw.PutSuccess(ctx, rec); err != nil {
			return err
		}
		return e.gw.DeleteActive(ctx, rec.MessageID)
	})
	if err != nil {
		e.opts.Hooks.OnGatewayError(ctx, "put_success", rec.MessageID, err)
		e.opts.Logger.Error(ctx, "[%s] commit success failed for %s, returning to heap: %v", e.id, rec.MessageID, err)
		e.insertLocked(prior)
		return
	}

	e.succeeded++
	e.opts.Hooks.OnSuccess(ctx, rec)
}

// commitFailedLocked retires rec to the failed prefix. prior is the record as
// it was before this attempt, restored to the heap if the writes fail.
func (e *Engine) commitFailedLocked(ctx context.Context, rec, prior *Record, now time.Time) {
	rec.Status = StatusFailed
	rec.UpdatedAt = timeToUnix(now)

	err := e.gatewayRetry(ctx, func() error {
		if err := e.gw.PutFailed(ctx, rec); err != nil {
			return err
		}
		return e.gw.DeleteActive(ctx, rec.MessageID)
	})
	if err != nil {
		e.opts.Hooks.OnGatewayError(ctx, "put_failed", rec.MessageID, err)
		e.opts.Logger.Error(ctx, "[%s] commit failed-state failed for %s, returning to heap: %v", e.id, rec.MessageID, err)
		e.insertLocked(prior)
		return
	}

	e.failed++
	e.opts.Hooks.OnFail(ctx, rec)
}

func (e *Engine) commitRetryOrFailLocked(ctx context.Context, rec *Record, now time.Time) {
	prior := rec.clone()
	attempt := rec.AttemptCount + 1
	next, ok := e.opts.Policy(rec.createdAtTime(), attempt)
	if !ok {
		rec.AttemptCount = attempt
		e.commitFailedLocked(ctx, rec, prior, now)
		return
	}

	rec.AttemptCount = attempt
	rec.NextRetryAt = timeToUnix(next)
	rec.UpdatedAt = timeToUnix(now)

	err := e.gatewayRetry(ctx, func() error {
		return e.gw.PutActive(ctx, rec)
	})
	if err != nil {
		e.opts.Hooks.OnGatewayError(ctx, "put_active", rec.MessageID, err)
		e.opts.Logger.Error(ctx, "[%s] reschedule failed for %s, restoring prior state: %v", e.id, rec.MessageID, err)
		e.insertLocked(prior)
		return
	}

	e.insertLocked(rec)
	e.opts.Hooks.OnRetry(ctx, rec, next)
}

// gatewayRetry retries fn with bounded exponential backoff, per spec.md §7's
// GatewayError handling: base delay, doubling, capped, up to a fixed number
// of attempts.
func (e *Engine) gatewayRetry(ctx context.Context, fn func() error) error {
	delay := e.opts.GatewayRetryBase
	var err error
	for attempt := 1; attempt <= e.opts.GatewayRetryMaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == e.opts.GatewayRetryMaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return err
		}
		delay *= 2
		if delay > e.opts.GatewayRetryCap {
			delay = e.opts.GatewayRetryCap
		}
	}
	return err
}
