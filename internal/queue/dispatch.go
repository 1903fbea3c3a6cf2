// Package queue provides SQS-based message producers for dispatching
// generation jobs and meal events to downstream consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/pmg5408/grocery-meal-agent/internal/config"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// GenerationDispatcher enqueues generation jobs for the generation worker.
// Dispatch is at-least-once: a tick that dies between dispatch and reschedule
// causes a duplicate job, which the worker absorbs.
type GenerationDispatcher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewGenerationDispatcher creates a new GenerationDispatcher with the given
// SQS client and configuration.
func NewGenerationDispatcher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *GenerationDispatcher {
	return &GenerationDispatcher{
		client:   client,
		queueURL: awsCfg.GenerationQueue,
		logger:   logger,
	}
}

// Dispatch enqueues a generation job for one user and window. A fresh trace
// ID is minted per dispatch so duplicate firings remain distinguishable in
// logs. The reason attribute records what initiated the job ("tick" or
// "enrollment").
func (d *GenerationDispatcher) Dispatch(ctx context.Context, userID int64, window types.MealWindow, reason string) error {
	msg := types.GenerationMessage{
		TraceID: uuid.New().String(),
		UserID:  userID,
		Window:  window,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal GenerationMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to dispatch generation job to %s", d.queueURL), err)
	}

	d.logger.InfoContext(ctx, "generation job dispatched",
		"queue_url", d.queueURL,
		"trace_id", msg.TraceID,
		"user_id", userID,
		"window", window.String(),
		"reason", reason,
	)

	return nil
}

// MealEventPublisher publishes meal events to the queue the notify gateway
// consumes. Events carry no meal content; clients re-fetch on receipt, so
// duplicate deliveries are harmless.
type MealEventPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewMealEventPublisher creates a new MealEventPublisher with the given SQS
// client and configuration.
func NewMealEventPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *MealEventPublisher {
	return &MealEventPublisher{
		client:   client,
		queueURL: awsCfg.MealEventQueue,
		logger:   logger,
	}
}

// Publish sends one meal event.
func (p *MealEventPublisher) Publish(ctx context.Context, event types.MealEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal MealEvent: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to publish meal event to %s", p.queueURL), err)
	}

	p.logger.InfoContext(ctx, "meal event published",
		"queue_url", p.queueURL,
		"user_id", event.UserID,
		"kind", string(event.Kind),
	)

	return nil
}
