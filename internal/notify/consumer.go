package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// SQSReceiver abstracts the SQS consume operations for testability.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// receiveErrorBackoff throttles the poll loop after a receive failure so a
// broken queue connection does not spin.
const receiveErrorBackoff = 5 * time.Second

// Consumer long-polls the meal event queue and pushes each event through the
// registry. Every message is deleted after processing regardless of delivery
// outcome: the push is best-effort and disconnected users fetch on next open,
// so redelivering to them would accomplish nothing.
type Consumer struct {
	client   SQSReceiver
	queueURL string
	registry *Registry
	logger   *slog.Logger
	sleepFn  func(time.Duration)
}

// NewConsumer creates a Consumer for the given queue.
func NewConsumer(client SQSReceiver, queueURL string, registry *Registry, logger *slog.Logger) *Consumer {
	return &Consumer{
		client:   client,
		queueURL: queueURL,
		registry: registry,
		logger:   logger,
		sleepFn:  time.Sleep,
	}
}

// Run polls until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			c.logger.ErrorContext(ctx, "meal event receive failed", "error", err)
			c.sleepFn(receiveErrorBackoff)
			continue
		}

		for _, msg := range out.Messages {
			c.handle(ctx, aws.ToString(msg.Body))

			if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(c.queueURL),
				ReceiptHandle: msg.ReceiptHandle,
			}); err != nil {
				c.logger.WarnContext(ctx, "meal event delete failed", "error", err)
			}
		}
	}
}

// handle pushes one raw message body. Malformed bodies are logged and
// dropped; they would never become deliverable.
func (c *Consumer) handle(ctx context.Context, body string) {
	var event types.MealEvent
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		c.logger.WarnContext(ctx, "malformed meal event dropped", "error", err)
		return
	}

	switch c.registry.Notify(ctx, event) {
	case Delivered:
		c.logger.InfoContext(ctx, "meal event delivered",
			"user_id", event.UserID, "kind", string(event.Kind))
	case NotConnected:
		c.logger.DebugContext(ctx, "meal event skipped, user not connected",
			"user_id", event.UserID, "kind", string(event.Kind))
	case Failed:
		// Already logged by the registry with the connection error.
	}
}
