// Command sqs-consumer drains the queue that senders/sqs publishes to,
// standing in for the downstream carrier-integration worker.
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/avrahamgoldberg/sms-retry-project/internal/config"
	awssqs "github.com/avrahamgoldberg/sms-retry-project/internal/lib/aws/sqs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()

	client, err := awssqs.New(ctx, cfg.Region, cfg.SQSEndpointURL)
	if err != nil {
		log.Fatalf("init sqs client: %v", err)
	}

	log.Printf("consumer listening on queue %s", cfg.SQSQueueURL)
	for {
		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.SQSQueueURL),
			MaxNumberOfMessages: 5,
			WaitTimeSeconds:     5,
			VisibilityTimeout:   30,
		})
		if err != nil {
			log.Printf("receive error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(resp.Messages) == 0 {
			continue
		}
		for _, msg := range resp.Messages {
			log.Printf("received message: %s", aws.ToString(msg.Body))
			if msg.ReceiptHandle == nil {
				continue
			}
			if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(cfg.SQSQueueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				log.Printf("delete error: %v", err)
			}
		}
	}
}
