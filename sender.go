package smsretry

import (
	"context"
	"math/rand"
)

// Outcome is the tri-state result of a single Sender attempt.
type Outcome int

const (
	// Success means the carrier accepted the message; the record is
	// promoted to SUCCEEDED.
	Success Outcome = iota
	// TransientFailure means the attempt failed but may succeed on retry;
	// the record is rescheduled per the retry Policy.
	TransientFailure
	// PermanentFailure means the carrier refused the message outright; the
	// record is promoted to FAILED immediately, bypassing the retry Policy.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "SUCCESS"
	case PermanentFailure:
		return "PERMANENT_FAILURE"
	default:
		return "TRANSIENT_FAILURE"
	}
}

// Sender is the pluggable capability the engine invokes once per attempt.
// Implementations must not block indefinitely; impose your own deadline via
// ctx or an internal timeout.
type Sender interface {
	Send(ctx context.Context, msg Message) (Outcome, error)
}

// invokeSender calls sender.Send and maps any panic or returned error to
// TransientFailure, per spec.md §4.5 and §7 (SenderError).
func invokeSender(ctx context.Context, sender Sender, msg Message) (outcome Outcome) {
	outcome = TransientFailure
	defer func() {
		if r := recover(); r != nil {
			outcome = TransientFailure
		}
	}()
	o, err := sender.Send(ctx, msg)
	if err != nil {
		return TransientFailure
	}
	return o
}

// DemoSender is the default sample Sender: it succeeds with a fixed
// probability and returns TransientFailure otherwise, mirroring the
// original mock send() used for local testing (30% success rate by
// default, chosen there to amplify the odds of exhausting retries).
type DemoSender struct {
	// SuccessRate is the probability (0..1) that an attempt succeeds.
	SuccessRate float64
	// Rand supplies randomness; defaults to a package-level source if nil.
	Rand *rand.Rand
}

// NewDemoSender returns a DemoSender with the given success probability.
// successRate is honored exactly, including 0 (always fail). Pass a
// negative value to request the traditional 0.3 default instead of an
// explicit rate.
func NewDemoSender(successRate float64) *DemoSender {
	if successRate < 0 {
		successRate = 0.3
	}
	return &DemoSender{SuccessRate: successRate}
}

func (s *DemoSender) Send(_ context.Context, _ Message) (Outcome, error) {
	rate := s.SuccessRate
	roll := rand.Float64()
	if s.Rand != nil {
		roll = s.Rand.Float64()
	}
	if roll < rate {
		return Success, nil
	}
	return TransientFailure, nil
}
