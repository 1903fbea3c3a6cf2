// Package config defines the configuration for the grocery-meal-agent
// services. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, optionally seeded by a local .env file.
//
// Any missing required value or invalid format fails loading immediately so
// a misconfigured worker never starts.
package config

import (
	"time"
)

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server     ServerConfig
	Database   DatabaseConfig
	AWS        AWSConfig
	Generation GenerationConfig
	Scheduler  SchedulerConfig
}

// ServerConfig holds HTTP settings for the notify gateway.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// GenerationQueue receives {userId, windowIndex} job dispatches.
	GenerationQueue string `envconfig:"SQS_GENERATION_QUEUE" validate:"required,url"`
	// MealEventQueue is the mealGenerated channel consumed by the gateway.
	MealEventQueue string `envconfig:"SQS_MEAL_EVENTS" validate:"required,url"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"MealAgent"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// GenerationConfig holds the recipe generation gateway settings.
type GenerationConfig struct {
	BaseURL string        `envconfig:"GENERATION_BASE_URL" validate:"required,url"`
	APIKey  string        `envconfig:"GENERATION_API_KEY" validate:"required"`
	Model   string        `envconfig:"GENERATION_MODEL" default:"gemini-2.5-flash"`
	Timeout time.Duration `envconfig:"GENERATION_TIMEOUT" default:"45s"`
}

// SchedulerConfig tunes the tick cycle.
type SchedulerConfig struct {
	// DueBatchLimit caps how many due triggers one tick processes, keeping a
	// single invocation within its execution deadline during backlogs.
	DueBatchLimit int `envconfig:"TICK_DUE_BATCH_LIMIT" default:"500"`
}
