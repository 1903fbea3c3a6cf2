// Package main is the entrypoint for the Generation Worker Lambda function.
//
// The worker consumes generation jobs from SQS. Each job loads the user's
// pantry, calls the recipe gateway, persists the result, and repoints the
// user's trigger at it. The Lambda SQS integration uses partial batch
// responses: retryable failures are reported in batchItemFailures so SQS
// redrives only those messages, while terminal failures are ACKed and logged.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmg5408/grocery-meal-agent/internal/config"
	"github.com/pmg5408/grocery-meal-agent/internal/db"
	"github.com/pmg5408/grocery-meal-agent/internal/external"
	"github.com/pmg5408/grocery-meal-agent/internal/generation"
	"github.com/pmg5408/grocery-meal-agent/internal/queue"
	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// Handler holds the worker's dependencies.
type Handler struct {
	job    *generation.Job
	logger *slog.Logger
}

// Handle processes a batch of generation messages. Messages are independent;
// a failure in one never blocks the rest of the batch.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processRecord runs one generation job. A nil return ACKs the message; a
// non-nil return requests redelivery.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var msg types.GenerationMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// Malformed bodies never become parseable; ACK and log.
		h.logger.ErrorContext(ctx, "dropping malformed generation message",
			"message_id", record.MessageId, "error", err)
		return nil
	}

	if err := h.job.Run(ctx, msg); err != nil {
		if types.IsRetryable(err) {
			h.logger.WarnContext(ctx, "generation job failed, requesting redelivery",
				"message_id", record.MessageId,
				"trace_id", msg.TraceID,
				"user_id", msg.UserID,
				"error", err,
			)
			return err
		}
		h.logger.ErrorContext(ctx, "generation job failed terminally",
			"message_id", record.MessageId,
			"trace_id", msg.TraceID,
			"user_id", msg.UserID,
			"error", err,
		)
		return nil
	}

	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("generation worker initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	recipeClient := external.NewRecipeClient(cfg.Generation)

	triggerRepo := db.NewTriggerRepository(pool)
	job := generation.NewJob(
		recipeClient,
		db.NewPantryRepository(pool),
		db.NewMealRepository(pool),
		triggerRepo,
		queue.NewMealEventPublisher(sqsClient, cfg.AWS, logger),
		logger,
	)

	logger.Info("generation worker initialized",
		"generation_base_url", cfg.Generation.BaseURL,
		"generation_model", cfg.Generation.Model,
		"meal_event_queue", cfg.AWS.MealEventQueue,
	)

	handler := &Handler{job: job, logger: logger}
	lambda.Start(handler.Handle)
}
