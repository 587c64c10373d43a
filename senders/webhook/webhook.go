// Package webhook implements smsretry.Sender by posting each message to an
// HTTP endpoint, mirroring the event-sink pattern used for local testing.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// Sender posts messages to an HTTP endpoint as JSON.
type Sender struct {
	client *http.Client
	target string
}

// NewSender returns a Sender that posts to target with a fixed timeout.
func NewSender(target string) *Sender {
	return &Sender{
		target: target,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Send implements smsretry.Sender. A 2xx response is Success; a 4xx
// response is PermanentFailure (the endpoint rejected the payload and a
// retry would not help); anything else, including a transport error, is
// TransientFailure.
func (s *Sender) Send(ctx context.Context, msg smsretry.Message) (smsretry.Outcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return smsretry.PermanentFailure, fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.target, bytes.NewReader(body))
	if err != nil {
		return smsretry.TransientFailure, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return smsretry.TransientFailure, err
	}
	defer func(Body io.ReadCloser) { _ = Body.Close() }(resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return smsretry.Success, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return smsretry.PermanentFailure, fmt.Errorf("webhook rejected message: %s", resp.Status)
	default:
		return smsretry.TransientFailure, fmt.Errorf("webhook responded with %s", resp.Status)
	}
}

var _ smsretry.Sender = (*Sender)(nil)
