// Package twilio implements smsretry.Sender against the real Twilio SMS
// API.
package twilio

import (
	"context"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// Sender sends each message body as an SMS via Twilio. Message.Metadata["to"]
// supplies the destination number; a missing destination is a permanent
// failure, since no retry will ever supply it.
type Sender struct {
	client *twilio.RestClient
	from   string
}

// Config holds the Twilio account credentials and sending number.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewSender constructs a Sender from the given credentials.
func NewSender(cfg Config) (*Sender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio: account sid and auth token are required")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("twilio: from number is required")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Sender{client: client, from: cfg.FromNumber}, nil
}

// Send implements smsretry.Sender.
func (s *Sender) Send(_ context.Context, msg smsretry.Message) (smsretry.Outcome, error) {
	to := msg.Metadata["to"]
	if to == "" {
		return smsretry.PermanentFailure, fmt.Errorf("twilio: message %s has no destination number", msg.ID)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(msg.Content)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return smsretry.TransientFailure, fmt.Errorf("twilio: send to %s: %w", to, err)
	}
	return smsretry.Success, nil
}

var _ smsretry.Sender = (*Sender)(nil)
