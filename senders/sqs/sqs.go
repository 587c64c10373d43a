// Package sqs implements smsretry.Sender by publishing each message to an
// SQS queue instead of delivering it directly, for deployments that front
// a separate carrier-integration worker (works against LocalStack).
package sqs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"

	awssqs "github.com/avrahamgoldberg/sms-retry-project/internal/lib/aws/sqs"
	smsretry "github.com/avrahamgoldberg/sms-retry-project"
)

// Sender publishes messages to an SQS queue.
type Sender struct {
	queueURL string
	client   *sqs.Client
}

// NewSender creates an SQS client targeting the given region/endpoint and
// queue.
func NewSender(ctx context.Context, region, endpointURL, queueURL string) (*Sender, error) {
	client, err := awssqs.New(ctx, region, endpointURL)
	if err != nil {
		return nil, err
	}
	return &Sender{queueURL: queueURL, client: client}, nil
}

// Send implements smsretry.Sender by posting the message as its raw JSON
// payload. An API error with code InvalidMessageContents or
// InvalidParameterValue is treated as permanent; any other failure,
// including other API errors and the AWS SDK's own retries being exhausted,
// is transient.
func (s *Sender) Send(ctx context.Context, msg smsretry.Message) (smsretry.Outcome, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return smsretry.PermanentFailure, err
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case "InvalidMessageContents", "InvalidParameterValue":
				return smsretry.PermanentFailure, err
			}
		}
		return smsretry.TransientFailure, err
	}
	return smsretry.Success, nil
}

var _ smsretry.Sender = (*Sender)(nil)
