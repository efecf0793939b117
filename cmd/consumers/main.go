package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatepass/cmd/consumers/jobs"
	"gatepass/internal/config"
	"gatepass/internal/consumers"
	"gatepass/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}

	log.Info("Starting consumers service...")

	// consumers always need the event stream
	cfg.NATS.Enabled = true
	cfg.NATS.ClientID = "gatepass-consumers"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumerService, err := consumers.NewConsumerService(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to create consumer service", "error", err)
	}

	if err := consumerService.Start(); err != nil {
		logger.Fatal("Failed to start consumers", "error", err)
	}

	expirationJob := jobs.NewPendingExpirationJob(consumerService.Completions(), cfg.Ticket.PendingTimeout, jobs.DefaultCheckInterval)
	expirationJob.Start(ctx)

	log.Info("Consumers service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down consumers service...")

	cancel()
	expirationJob.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumerService.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
	}

	log.Info("Consumers service stopped")
}
