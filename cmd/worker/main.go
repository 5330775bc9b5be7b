package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Raj-Randive/chatdocs/internal/bootstrap"
	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/logger"
	"github.com/Raj-Randive/chatdocs/internal/queue"
	"github.com/Raj-Randive/chatdocs/internal/worker/ingestion"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}
	if cfg.IngestionTransport != queue.TransportPgmq {
		logger.Fatal().Msgf("The worker consumes pgmq only; INGESTION_TRANSPORT is %q", cfg.IngestionTransport)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := bootstrap.LoadSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal().Msgf("Error loading secrets: %v", err)
	}

	infra, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialise dependencies: %v", err)
	}
	defer infra.Close()

	err = ingestion.Run(ctx, logger, infra.Pgmq, infra.Processor(cfg, logger), ingestion.PollOptions{
		Queue:             cfg.IngestionQueueName,
		PollTimeoutSec:    cfg.IngestionPollTimeoutSec,
		MaxMessages:       cfg.IngestionPollMaxMsg,
		VisibilityTimeout: cfg.IngestionVisibilityTimeout,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Ingestion worker failed")
		return
	}
	logger.Info().Msg("Ingestion worker stopped gracefully")
}
