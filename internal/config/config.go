package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	S3URL       string `envconfig:"S3_URL" required:"true"`
	S3Bucket    string `envconfig:"S3_BUCKET" required:"true"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" required:"true"`

	// Gemini settings
	GeminiAPIKey         string `envconfig:"GEMINI_API_KEY"`
	GeminiEmbeddingModel string `envconfig:"GEMINI_EMBEDDING_MODEL" default:"text-embedding-004"`
	GeminiChatModel      string `envconfig:"GEMINI_CHAT_MODEL" default:"gemini-1.5-flash"`
	EmbeddingDim         int    `envconfig:"EMBEDDING_DIM" default:"768"`

	// Chat pipeline settings
	ChatTopK               int `envconfig:"CHAT_TOP_K" default:"4"`
	ChatHistorySize        int `envconfig:"CHAT_HISTORY_SIZE" default:"6"`
	ChatRateLimitPerMinute int `envconfig:"CHAT_RATE_LIMIT_PER_MINUTE" default:"20"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	// Ingestion settings
	IngestionTransport           string `envconfig:"INGESTION_TRANSPORT" default:"pgmq"`
	IngestionQueueName           string `envconfig:"INGESTION_QUEUE_NAME" default:"ingestion_queue"`
	IngestionPollTimeoutSec      int    `envconfig:"INGESTION_POLL_TIMEOUT_SEC" default:"30"`
	IngestionPollMaxMsg          int    `envconfig:"INGESTION_POLL_MAX_MSG" default:"1"`
	IngestionVisibilityTimeout   int    `envconfig:"INGESTION_VISIBILITY_TIMEOUT_SEC" default:"300"`
	IngestionMaxRetries          int    `envconfig:"INGESTION_MAX_RETRIES" default:"3"`
	IngestionBackoffInitialSec   int    `envconfig:"INGESTION_BACKOFF_INITIAL_SEC" default:"1"`
	IngestionBackoffMaxSec       int    `envconfig:"INGESTION_BACKOFF_MAX_SEC" default:"30"`
	IngestionRequestTimeoutSec   int    `envconfig:"INGESTION_REQUEST_TIMEOUT_SEC" default:"300"`
	IngestionEmbedConcurrency    int    `envconfig:"INGESTION_EMBED_CONCURRENCY" default:"4"`
	IngestionPDFFallback         bool   `envconfig:"INGESTION_PDF_FALLBACK" default:"false"`
	IngestionDeadLetterQueueName string `envconfig:"INGESTION_DEAD_LETTER_QUEUE_NAME" default:"ingestion_queue_dlq"`

	// Pub/Sub settings
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubIngestionTopic          string `envconfig:"PUBSUB_INGESTION_TOPIC" default:"file-ingestion"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubPushAudience            string `envconfig:"PUBSUB_PUSH_AUDIENCE"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`

	SecretsProjectID string `envconfig:"SECRETS_PROJECT_ID"`

	// Stripe settings
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePricePro      string `envconfig:"STRIPE_PRICE_PRO"`

	AppBaseURL           string        `envconfig:"APP_BASE_URL" default:"http://localhost:3000"`
	UploadCallbackSecret string        `envconfig:"UPLOAD_CALLBACK_SECRET"`
	UploadURLExpiry      time.Duration `envconfig:"UPLOAD_URL_EXPIRY" default:"15m"`

	AuthProviderURL string `envconfig:"AUTH_PROVIDER_URL"`
	AuthClientID    string `envconfig:"AUTH_CLIENT_ID"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
