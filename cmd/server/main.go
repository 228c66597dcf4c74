/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payment engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env / environment variables)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create API handler with dependencies
  5. Start the nightly report scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the report scheduler
  4. Close database connection
  5. Exit

ENVIRONMENT:
  PORT, DATABASE_PATH, ENVIRONMENT, LOG_LEVEL,
  PAYMENT_CALLBACK_URL, DEV_PAYMENT_KEY/URL, PROD_PAYMENT_KEY/URL,
  PAYMENT_ORDER_TYPE, PAYMENT_ORDER_DESCRIPTION, PAYMENT_RETRIES_ALLOWED,
  PAYMENT_SERVICE_SELECTOR, CRON_SPEC_REPORT

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nelp/payment-engine/api"
	"github.com/nelp/payment-engine/config"
	"github.com/nelp/payment-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := newLogger(cfg)

	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, cfg.CredentialSet(), log)
	router := api.NewRouter(handler)

	scheduler := api.NewReportScheduler(store, handler.Engine, cfg.CronSpecReport, log)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start report scheduler: %v", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.Environment,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	scheduler.Stop()
	log.Info("server stopped")
}

// newLogger configures logrus from the loaded configuration: JSON in
// production and staging, colored text in development.
func newLogger(cfg *config.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" || cfg.Environment == "staging" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}
	return log
}
