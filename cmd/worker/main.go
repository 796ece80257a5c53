package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"affimporter/internal/config"
	"affimporter/internal/database"
	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/store"
	"affimporter/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.IsProduction())
	defer logger.Sync()

	if len(events.BrokerList(cfg.KafkaBrokers)) == 0 {
		logger.Fatal("KAFKA_BROKERS must be set to run the worker")
	}

	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize worker
	w := worker.New(cfg, logger, store.New(db.DB))
	defer w.Stop()

	// Stop on interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}
	logger.Info("Shutting down worker...")
}
