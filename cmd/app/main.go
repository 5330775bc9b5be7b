package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/api/v1/router"
	"github.com/Raj-Randive/chatdocs/internal/bootstrap"
	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/logger"
	"github.com/Raj-Randive/chatdocs/internal/pubsub"
	"github.com/Raj-Randive/chatdocs/internal/queue"
	"github.com/Raj-Randive/chatdocs/internal/ratelimit"
	"github.com/Raj-Randive/chatdocs/internal/repository"
	"github.com/Raj-Randive/chatdocs/internal/service"

	"github.com/joho/godotenv"
)

// @title chatdocs API
// @version 1.0
// @description Upload PDFs and chat with them
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx := context.Background()
	if err := bootstrap.LoadSecrets(ctx, cfg, logger); err != nil {
		logger.Fatal().Msgf("Error loading secrets: %v", err)
	}

	// 2. Connect to Postgres, the bucket and Gemini
	infra, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialise dependencies: %v", err)
	}
	defer infra.Close()

	userRepo := repository.NewUserRepo(infra.Pool)
	fileRepo := repository.NewFileRepo(infra.Pool)
	messageRepo := repository.NewMessageRepo(infra.Pool)
	vectorRepo := repository.NewVectorRepo(infra.Pool)
	usageRepo := repository.NewUsageRepo(infra.Pool)
	subRepo := repository.NewSubscriptionRepo(infra.Pool)

	// 3. Pick the ingestion transport
	processor := infra.Processor(cfg, logger)
	deps := router.Deps{}

	var enqueuer queue.Enqueuer
	switch cfg.IngestionTransport {
	case queue.TransportPgmq:
		enqueuer = queue.NewPgmqEnqueuer(infra.Pgmq, cfg.IngestionQueueName)
	case queue.TransportPubSub:
		publisher, err := pubsub.NewPublisher(ctx, pubsub.Options{
			ProjectID:    cfg.GCPProjectID,
			EmulatorHost: cfg.PubSubEmulatorHost,
		})
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		}
		defer publisher.Close()
		enqueuer = queue.NewPubSubEnqueuer(publisher, cfg.PubSubIngestionTopic)
		deps.Ingest = processor
	case queue.TransportInline:
		timeout := time.Duration(cfg.IngestionRequestTimeoutSec) * time.Second
		enqueuer = queue.NewInlineEnqueuer(processor, timeout, logger)
	default:
		logger.Fatal().Msgf("Unknown ingestion transport: %s", cfg.IngestionTransport)
	}
	logger.Info().Str("transport", cfg.IngestionTransport).Msg("Ingestion transport selected")

	// 4. Optional shared chat rate limiter
	if cfg.RedisAddr != "" && cfg.ChatRateLimitPerMinute > 0 {
		rdb := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
		defer rdb.Close()
		limiter, err := ratelimit.NewFixedWindowLimiter(rdb, "chatdocs:chat", cfg.ChatRateLimitPerMinute, time.Minute)
		if err != nil {
			logger.Fatal().Msgf("Failed to create rate limiter: %v", err)
		}
		deps.Limiter = limiter
	}

	// 5. Services
	stripeAPI := service.NewStripeAPI(cfg.StripeSecretKey)
	subSvc := service.NewSubscriptionService(userRepo, subRepo, infra.Plans, stripeAPI, logger)

	deps.Users = service.NewUserService(userRepo)
	deps.Subscriptions = subSvc
	deps.Stripe = service.NewStripeService(stripeAPI, cfg.StripeWebhookSecret, cfg.AppBaseURL, infra.Plans, userRepo, subSvc, logger)
	deps.Files = service.NewFileService(fileRepo, userRepo, usageRepo, vectorRepo, infra.Store, enqueuer, infra.Plans, cfg.UploadURLExpiry, logger)
	deps.Chat = service.NewChatService(fileRepo, messageRepo, vectorRepo, infra.Embed, infra.Gen, service.ChatConfig{
		TopK:        cfg.ChatTopK,
		HistorySize: cfg.ChatHistorySize,
	}, logger)

	// 6. Create HTTP server. Answers stream, so there is no write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, deps, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server shut down gracefully")
}
