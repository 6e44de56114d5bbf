package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pixelmuse/PixelMuse/internal/pkg/env"
)

// Config carries the startup-validated settings for the billing engine. The
// webhook secret is required: an absent secret must stop the service from
// accepting traffic instead of degrading to unsigned processing.
type Config struct {
	AppHost string
	AppPort string

	WebhookSecret string `validate:"required"`
	ServiceToken  string `validate:"required"`
}

// Load reads the config from the environment and validates it. Call after
// env.SetupEnvFile.
func Load() (*Config, error) {
	cfg := &Config{
		AppHost:       env.GetEnv("APP_HOST", "localhost"),
		AppPort:       env.GetEnv("APP_PORT", "4000"),
		WebhookSecret: env.GetEnv("CREEM_WEBHOOK_SECRET", ""),
		ServiceToken:  env.GetEnv("INTERNAL_SERVICE_TOKEN", ""),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
