// Command setup-pubsub-local creates the ingestion topic, its dead-letter
// topic and the push subscription on the Pub/Sub emulator.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/config"
	"github.com/Raj-Randive/chatdocs/internal/logger"

	"cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// For local development, 'host.docker.internal' lets the emulator reach the API on the host.
const pushEndpointLocal = "http://host.docker.internal:8080/v1/internal/ingest"

const (
	retention      = 7 * 24 * time.Hour
	ackDeadline    = 300 * time.Second
	maxDeliveries  = 5
	minimumBackoff = 10 * time.Second
	maximumBackoff = 600 * time.Second
)

func main() {
	endpoint := flag.String("endpoint", pushEndpointLocal, "push endpoint for the ingestion subscription")
	reset := flag.Bool("reset", false, "delete every topic and subscription first")
	flag.Parse()

	logger := logger.New()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set; this tool only targets the emulator.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close Pub/Sub client")
		}
	}()

	if *reset {
		resetEmulator(ctx, client, logger)
	}

	topicID := cfg.PubSubIngestionTopic
	dlqTopic := ensureTopic(ctx, client, logger, topicID+"-dlq")
	mainTopic := ensureTopic(ctx, client, logger, topicID)

	ensureSubscription(ctx, client, logger, topicID+"-sub", ingestionSubscription(mainTopic, dlqTopic, *endpoint))
	// Pull only; dead letters are inspected by hand.
	ensureSubscription(ctx, client, logger, topicID+"-dlq-sub", pubsub.SubscriptionConfig{
		Topic:       dlqTopic,
		AckDeadline: ackDeadline,
	})

	logger.Info().Str("topic", topicID).Str("endpoint", *endpoint).Msg("Pub/Sub setup complete")
}

func ingestionSubscription(topic, dlq *pubsub.Topic, endpoint string) pubsub.SubscriptionConfig {
	return pubsub.SubscriptionConfig{
		Topic:       topic,
		PushConfig:  pubsub.PushConfig{Endpoint: endpoint},
		AckDeadline: ackDeadline,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: minimumBackoff,
			MaximumBackoff: maximumBackoff,
		},
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlq.String(),
			MaxDeliveryAttempts: maxDeliveries,
		},
	}
}

// resetEmulator deletes all subscriptions and topics. Only for the emulator.
func resetEmulator(ctx context.Context, client *pubsub.Client, logger zerolog.Logger) {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list subscriptions: %v", err)
		}
		logger.Info().Str("subscription", sub.ID()).Msg("Deleting subscription")
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("Failed to delete subscription")
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list topics: %v", err)
		}
		logger.Info().Str("topic", topic.ID()).Msg("Deleting topic")
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", topic.ID()).Msg("Failed to delete topic")
		}
	}
}

func ensureTopic(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, topicID string) *pubsub.Topic {
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if topic %s exists: %v", topicID, err)
	}
	if exists {
		logger.Info().Str("topic", topicID).Msg("Topic already exists")
		return topic
	}

	logger.Info().Str("topic", topicID).Msg("Creating topic")
	topic, err = client.CreateTopicWithConfig(ctx, topicID, &pubsub.TopicConfig{RetentionDuration: retention})
	if err != nil {
		logger.Fatal().Msgf("Failed to create topic %s: %v", topicID, err)
	}
	return topic
}

func ensureSubscription(ctx context.Context, client *pubsub.Client, logger zerolog.Logger, subID string, want pubsub.SubscriptionConfig) {
	sub := client.Subscription(subID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to check if subscription %s exists: %v", subID, err)
	}

	if !exists {
		logger.Info().Str("subscription", subID).Str("endpoint", want.PushConfig.Endpoint).Msg("Creating subscription")
		if _, err := client.CreateSubscription(ctx, subID, want); err != nil {
			logger.Fatal().Msgf("Failed to create subscription %s: %v", subID, err)
		}
		return
	}

	have, err := sub.Config(ctx)
	if err != nil {
		logger.Fatal().Msgf("Failed to get config for subscription %s: %v", subID, err)
	}
	update, ok := subscriptionUpdate(have, want)
	if !ok {
		logger.Info().Str("subscription", subID).Msg("Configuration is up to date")
		return
	}
	logger.Info().Str("subscription", subID).Msg("Updating subscription")
	if _, err := sub.Update(ctx, update); err != nil {
		logger.Fatal().Msgf("Failed to update subscription %s: %v", subID, err)
	}
}

// subscriptionUpdate returns the changes that bring have in line with want.
func subscriptionUpdate(have, want pubsub.SubscriptionConfig) (pubsub.SubscriptionConfigToUpdate, bool) {
	var upd pubsub.SubscriptionConfigToUpdate
	changed := false

	if have.PushConfig.Endpoint != want.PushConfig.Endpoint {
		upd.PushConfig = &want.PushConfig
		changed = true
	}
	if have.AckDeadline != want.AckDeadline {
		upd.AckDeadline = want.AckDeadline
		changed = true
	}
	if !sameRetry(have.RetryPolicy, want.RetryPolicy) {
		upd.RetryPolicy = want.RetryPolicy
		changed = true
	}
	if !sameDeadLetter(have.DeadLetterPolicy, want.DeadLetterPolicy) {
		upd.DeadLetterPolicy = want.DeadLetterPolicy
		changed = true
	}
	return upd, changed
}

func sameRetry(a, b *pubsub.RetryPolicy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.MinimumBackoff == b.MinimumBackoff && a.MaximumBackoff == b.MaximumBackoff
}

func sameDeadLetter(a, b *pubsub.DeadLetterPolicy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DeadLetterTopic == b.DeadLetterTopic && a.MaxDeliveryAttempts == b.MaxDeliveryAttempts
}
