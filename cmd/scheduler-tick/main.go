// Package main is the entrypoint for the Scheduler Tick Lambda function.
//
// The tick runs every minute via an EventBridge rule. Each invocation expires
// superseded meal results whose window has ended, then claims every due
// trigger, dispatches a generation job for it, and advances it to the next
// window boundary. All business logic lives in internal/scheduler; this file
// handles cold-start wiring only.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmg5408/grocery-meal-agent/internal/config"
	"github.com/pmg5408/grocery-meal-agent/internal/db"
	"github.com/pmg5408/grocery-meal-agent/internal/queue"
	"github.com/pmg5408/grocery-meal-agent/internal/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("scheduler tick initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := newPool(ctx, cfg.Database)
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
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	tick := scheduler.NewTick(
		db.NewTriggerRepository(pool),
		db.NewPreferenceRepository(pool),
		queue.NewGenerationDispatcher(sqsClient, cfg.AWS, logger),
		queue.NewMealEventPublisher(sqsClient, cfg.AWS, logger),
		scheduler.NewTickMetrics(cwClient, cfg.AWS.MetricNamespace, logger),
		cfg.Scheduler.DueBatchLimit,
		logger,
	)

	logger.Info("scheduler tick initialized",
		"generation_queue", cfg.AWS.GenerationQueue,
		"meal_event_queue", cfg.AWS.MealEventQueue,
		"due_batch_limit", cfg.Scheduler.DueBatchLimit,
	)

	lambda.Start(newHandler(tick, logger))
}

// newHandler wraps Tick.Run with input logging. ReferenceTime in the input
// overrides the wall clock, for replays and backfills.
func newHandler(tick *scheduler.Tick, logger *slog.Logger) func(ctx context.Context, input scheduler.TickInput) (string, error) {
	return func(ctx context.Context, input scheduler.TickInput) (string, error) {
		if input.ReferenceTime != nil {
			logger.InfoContext(ctx, "tick invoked with reference time",
				"reference_time", input.ReferenceTime.UTC())
		}

		report, err := tick.Run(ctx, input)
		if err != nil {
			logger.ErrorContext(ctx, "tick run failed", "error", err)
			return "", fmt.Errorf("scheduler tick failed: %w", err)
		}

		return fmt.Sprintf("tick complete: %d dispatched, %d expired", report.Dispatched, report.Expired), nil
	}
}

// newPool builds the pgx pool with the configured tuning.
func newPool(ctx context.Context, dbCfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dbCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime

	return pgxpool.NewWithConfig(ctx, poolCfg)
}
