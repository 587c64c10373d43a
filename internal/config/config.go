// Package config loads runtime settings for the scheduler process.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config mirrors the configuration table: object-store location, API bind
// address, and the active sender backend's settings.
type Config struct {
	Bucket        string `env:"BUCKET,notEmpty"`
	ActivePrefix  string `env:"ACTIVE_PREFIX" envDefault:"state"`
	SuccessPrefix string `env:"SUCCESS_PREFIX" envDefault:"success"`
	FailedPrefix  string `env:"FAILED_PREFIX" envDefault:"failed"`
	EndpointURL   string `env:"ENDPOINT_URL"`
	Region        string `env:"REGION" envDefault:"us-east-1"`

	APIHost string `env:"API_HOST" envDefault:"0.0.0.0"`
	APIPort int    `env:"API_PORT" envDefault:"8080"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"INFO"`

	Sender               string  `env:"SENDER" envDefault:"demo"`
	DemoSuccessRate      float64 `env:"DEMO_SUCCESS_RATE" envDefault:"0.3"`
	MaxAttempts          int     `env:"MAX_ATTEMPTS" envDefault:"5"`
	BatchSize            int     `env:"BATCH_SIZE" envDefault:"64"`
	AllowPartialRecovery bool    `env:"ALLOW_PARTIAL_RECOVERY" envDefault:"false"`

	SQSQueueURL    string `env:"SQS_QUEUE_URL"`
	SQSEndpointURL string `env:"SQS_ENDPOINT_URL"`

	WebhookURL string `env:"WEBHOOK_URL"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`
}

// Load reads a .env file if present, then parses environment variables into
// a Config. A missing .env file is not an error; production deployments set
// the environment directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
