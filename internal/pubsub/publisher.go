package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Publisher defines an interface for publishing messages.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
}

// PubSubPublisher is an implementation of Publisher using Google Pub/Sub.
type PubSubPublisher struct {
	client *pubsub.Client
}

// Options selects the project and, for local runs, the emulator endpoint.
type Options struct {
	ProjectID    string
	EmulatorHost string
}

// NewPublisher creates a new PubSubPublisher for the configured project.
func NewPublisher(ctx context.Context, o Options) (*PubSubPublisher, error) {
	if o.ProjectID == "" {
		return nil, fmt.Errorf("GCP Project ID is not set for the current environment")
	}

	var opts []option.ClientOption
	if o.EmulatorHost != "" {
		opts = append(opts, option.WithEndpoint(o.EmulatorHost), option.WithoutAuthentication())
	}

	client, err := pubsub.NewClient(ctx, o.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &PubSubPublisher{client: client}, nil
}

// Publish sends the payload to the given Pub/Sub topic and returns the message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, payload []byte) (string, error) {
	t := p.client.Topic(topic)
	result := t.Publish(ctx, &pubsub.Message{Data: payload})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish message to topic %s: %w", topic, err)
	}
	return id, nil
}

// Close stops the underlying client.
func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}
