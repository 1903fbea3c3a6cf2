package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads, populates, and validates the configuration.
//
// The sequence is:
//  1. Enforce UTC as the process timezone. All window arithmetic and
//     persisted timestamps are UTC; a local timezone would skew every
//     boundary computation.
//  2. Load a .env file if present (non-fatal if absent; does not override
//     variables already set in the environment).
//  3. Process envconfig tags to populate the Config struct.
//  4. Validate the populated struct.
func Load() (*Config, error) {
	time.Local = time.UTC

	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: processing environment: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}
