package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"affimporter/internal/api"
	"affimporter/internal/config"
	"affimporter/internal/database"
	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/store"
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

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Refusing to start: %v", err)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL, cfg.LogLevel)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Seed the first administrator so the admin UI has someone to act as
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		admin, err := store.New(db.DB).EnsureUser(context.Background(), email, "Administrator", models.UserRoleAdmin)
		if err != nil {
			logger.Fatal("Failed to seed admin user: %v", err)
		}
		logger.Info("Admin user %s has id %d", admin.Email, admin.ID)
	}

	publisher := events.NewPublisher(cfg, logger)

	// Initialize API server
	server := api.New(cfg, logger, db, publisher)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}
