// Package bootstrap builds the shared dependencies of the API server and the
// ingestion worker from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/database"
	"github.com/Raj-Randive/chatdocs/internal/ingest"
	"github.com/Raj-Randive/chatdocs/internal/llm"
	"github.com/Raj-Randive/chatdocs/internal/pgmq"
	"github.com/Raj-Randive/chatdocs/internal/plan"
	"github.com/Raj-Randive/chatdocs/internal/repository"
	"github.com/Raj-Randive/chatdocs/internal/secrets"
	"github.com/Raj-Randive/chatdocs/internal/storage"
	"github.com/Raj-Randive/chatdocs/internal/worker/ingestion"

	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Infra holds the long-lived clients every process needs.
type Infra struct {
	Pool    *pgxpool.Pool
	Store   *storage.ObjectStore
	Gemini  *genai.Client
	Pgmq    *pgmq.Client
	Plans   plan.Table
	Embed   *llm.GeminiEmbedder
	Gen     *llm.GeminiGenerator
	closers []func()
}

// Close releases every client in reverse order of creation.
func (in *Infra) Close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}

// LoadSecrets fills provider credentials left empty in the environment from
// Secret Manager. It is a no-op without SECRETS_PROJECT_ID.
func LoadSecrets(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.SecretsProjectID == "" {
		return nil
	}
	store, err := secrets.NewStore(ctx, cfg.SecretsProjectID)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Fill(ctx, map[string]*string{
		secrets.StripeSecretKey:     &cfg.StripeSecretKey,
		secrets.StripeWebhookSecret: &cfg.StripeWebhookSecret,
		secrets.GeminiAPIKey:        &cfg.GeminiAPIKey,
		secrets.UploadCallbackKey:   &cfg.UploadCallbackSecret,
	}); err != nil {
		return err
	}
	logger.Info().Str("project", cfg.SecretsProjectID).Msg("Loaded secrets from Secret Manager")
	return nil
}

// New connects to Postgres, the bucket and Gemini, and bootstraps the schema
// and the queues this configuration uses.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Infra, error) {
	in := &Infra{Plans: plan.NewTable(cfg.StripePricePro)}

	pool, err := database.NewPool(ctx, cfg.DBConnectionString, cfg.IsDevelopment(), logger)
	if err != nil {
		return nil, err
	}
	in.Pool = pool
	in.closers = append(in.closers, pool.Close)

	if err := database.Bootstrap(ctx, pool, cfg.EmbeddingDim); err != nil {
		in.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	in.Pgmq = pgmq.New(pool)
	if err := in.Pgmq.EnsureQueues(ctx, cfg.IngestionQueueName, cfg.IngestionDeadLetterQueueName); err != nil {
		in.Close()
		return nil, fmt.Errorf("creating queues: %w", err)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3Config{
		Endpoint:  cfg.S3URL,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		in.Close()
		return nil, err
	}
	in.Store = storage.NewObjectStore(s3Client, cfg.S3Bucket)

	gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.Gemini = gemini
	in.closers = append(in.closers, func() { _ = gemini.Close() })
	in.Embed = llm.NewGeminiEmbedder(gemini, cfg.GeminiEmbeddingModel, cfg.EmbeddingDim)
	in.Gen = llm.NewGeminiGenerator(gemini, cfg.GeminiChatModel)

	return in, nil
}

// Extractor returns the PDF text extractor, with docconv as a second attempt
// when INGESTION_PDF_FALLBACK is set.
func Extractor(cfg *config.Config) ingest.Extractor {
	if cfg.IngestionPDFFallback {
		return ingest.FallbackExtractor{ingest.PDFExtractor{}, ingest.DocconvExtractor{}}
	}
	return ingest.PDFExtractor{}
}

// Processor builds the ingestion pipeline with retries and dead-lettering.
func (in *Infra) Processor(cfg *config.Config, logger zerolog.Logger) *ingestion.Processor {
	files := repository.NewFileRepo(in.Pool)
	users := repository.NewUserRepo(in.Pool)
	vectors := repository.NewVectorRepo(in.Pool)

	fetcher := storage.NewFetcher(in.Store, maxUploadBytes(in.Plans))
	indexer := ingest.NewIndexer(in.Embed, vectors, cfg.IngestionEmbedConcurrency)
	ingestor := ingest.NewIngestor(files, users, fetcher, Extractor(cfg), indexer, in.Plans, logger)

	return ingestion.NewProcessor(
		ingestor,
		ingestion.NewPgmqDeadLetters(in.Pgmq, cfg.IngestionDeadLetterQueueName),
		ingestion.RetryPolicy{
			MaxRetries:     cfg.IngestionMaxRetries,
			BackoffInitial: time.Duration(cfg.IngestionBackoffInitialSec) * time.Second,
			BackoffMax:     time.Duration(cfg.IngestionBackoffMaxSec) * time.Second,
			Timeout:        time.Duration(cfg.IngestionRequestTimeoutSec) * time.Second,
		},
		logger,
	)
}

// maxUploadBytes is the largest file any plan accepts.
func maxUploadBytes(plans plan.Table) int64 {
	var largest int
	for _, p := range plans {
		largest = max(largest, p.MaxFileSizeMB)
	}
	return int64(largest) << 20
}
