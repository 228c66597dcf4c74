// Package config loads application configuration from environment
// variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nelp/payment-engine/processor"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	Port         string
	DatabasePath string
	Environment  string
	LogLevel     string

	// ServiceSelector forces the development processor credentials when
	// set to "QA", regardless of environment.
	ServiceSelector string

	DevPaymentKey  string
	DevPaymentURL  string
	ProdPaymentKey string
	ProdPaymentURL string

	OrderType        string
	OrderDescription string
	CallbackURL      string
	RetriesAllowed   int

	// CronSpecReport schedules the nightly paid-in-full report.
	CronSpecReport string
}

// Load reads configuration from environment variables and .env file
// (if present). godotenv.Load will not override existing env variables.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	cfg.DatabasePath = os.Getenv("DATABASE_PATH")
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./data/payments.db"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.ServiceSelector = os.Getenv("PAYMENT_SERVICE_SELECTOR")

	cfg.DevPaymentKey = os.Getenv("DEV_PAYMENT_KEY")
	cfg.DevPaymentURL = os.Getenv("DEV_PAYMENT_URL")
	cfg.ProdPaymentKey = os.Getenv("PROD_PAYMENT_KEY")
	cfg.ProdPaymentURL = os.Getenv("PROD_PAYMENT_URL")

	if cfg.Environment == "production" {
		if cfg.ProdPaymentKey == "" || cfg.ProdPaymentURL == "" {
			return nil, fmt.Errorf("PROD_PAYMENT_KEY and PROD_PAYMENT_URL must be set in production")
		}
	}

	cfg.OrderType = os.Getenv("PAYMENT_ORDER_TYPE")
	cfg.OrderDescription = os.Getenv("PAYMENT_ORDER_DESCRIPTION")
	if cfg.OrderDescription == "" {
		cfg.OrderDescription = "Program participation fee"
	}

	cfg.CallbackURL = os.Getenv("PAYMENT_CALLBACK_URL")
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("PAYMENT_CALLBACK_URL is not set")
	}

	retriesStr := os.Getenv("PAYMENT_RETRIES_ALLOWED")
	if retriesStr == "" {
		cfg.RetriesAllowed = 3
	} else {
		retries, err := strconv.Atoi(retriesStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYMENT_RETRIES_ALLOWED: %w", err)
		}
		cfg.RetriesAllowed = retries
	}

	cfg.CronSpecReport = os.Getenv("CRON_SPEC_REPORT")
	if cfg.CronSpecReport == "" {
		cfg.CronSpecReport = "0 2 * * *" // 2:00 AM daily
	}

	return cfg, nil
}

// CredentialSet maps the loaded configuration onto the processor's
// credential selection input.
func (c *AppConfig) CredentialSet() processor.CredentialSet {
	return processor.CredentialSet{
		Mode:            processor.Mode(c.Environment),
		ServiceSelector: c.ServiceSelector,
		Development: processor.Credentials{
			Key:     c.DevPaymentKey,
			BaseURL: c.DevPaymentURL,
		},
		Production: processor.Credentials{
			Key:     c.ProdPaymentKey,
			BaseURL: c.ProdPaymentURL,
		},
		OrderType:        c.OrderType,
		OrderDescription: c.OrderDescription,
		CallbackURL:      c.CallbackURL,
		RetriesAllowed:   c.RetriesAllowed,
	}
}
