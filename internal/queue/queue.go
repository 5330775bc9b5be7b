// Package queue schedules ingestion jobs on the configured transport.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/pgmq"
	"github.com/Raj-Randive/chatdocs/internal/pubsub"

	"github.com/rs/zerolog"
)

const (
	TransportPgmq   = "pgmq"
	TransportPubSub = "pubsub"
	TransportInline = "inline"
)

// Enqueuer schedules ingestion of a file.
type Enqueuer interface {
	Enqueue(ctx context.Context, job model.IngestionJob) error
}

// Processor runs one ingestion job to completion.
type Processor interface {
	Handle(ctx context.Context, job model.IngestionJob) error
}

func encode(job model.IngestionJob) ([]byte, error) {
	if job.FileID == "" {
		return nil, fmt.Errorf("ingestion job without file id")
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal ingestion job: %w", err)
	}
	return payload, nil
}

// PgmqEnqueuer sends jobs to a pgmq queue consumed by the worker.
type PgmqEnqueuer struct {
	client *pgmq.Client
	queue  string
}

func NewPgmqEnqueuer(client *pgmq.Client, queue string) *PgmqEnqueuer {
	return &PgmqEnqueuer{client: client, queue: queue}
}

func (e *PgmqEnqueuer) Enqueue(ctx context.Context, job model.IngestionJob) error {
	payload, err := encode(job)
	if err != nil {
		return err
	}
	if _, err := e.client.Send(ctx, e.queue, payload, 0); err != nil {
		return fmt.Errorf("enqueue file %s: %w", job.FileID, err)
	}
	return nil
}

// PubSubEnqueuer publishes jobs to a topic whose push subscription targets
// the internal ingest endpoint.
type PubSubEnqueuer struct {
	publisher pubsub.Publisher
	topic     string
}

func NewPubSubEnqueuer(publisher pubsub.Publisher, topic string) *PubSubEnqueuer {
	return &PubSubEnqueuer{publisher: publisher, topic: topic}
}

func (e *PubSubEnqueuer) Enqueue(ctx context.Context, job model.IngestionJob) error {
	payload, err := encode(job)
	if err != nil {
		return err
	}
	if _, err := e.publisher.Publish(ctx, e.topic, payload); err != nil {
		return fmt.Errorf("publish file %s: %w", job.FileID, err)
	}
	return nil
}

// InlineEnqueuer runs jobs in a goroutine of the calling process. Jobs are
// detached from the request context so they outlive the request.
type InlineEnqueuer struct {
	processor Processor
	timeout   time.Duration
	logger    zerolog.Logger
}

func NewInlineEnqueuer(processor Processor, timeout time.Duration, logger zerolog.Logger) *InlineEnqueuer {
	return &InlineEnqueuer{processor: processor, timeout: timeout, logger: logger}
}

func (e *InlineEnqueuer) Enqueue(ctx context.Context, job model.IngestionJob) error {
	if job.FileID == "" {
		return fmt.Errorf("ingestion job without file id")
	}
	go func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		if err := e.processor.Handle(jobCtx, job); err != nil {
			e.logger.Error().Err(err).Str("file_id", job.FileID).Msg("Inline ingestion failed")
		}
	}()
	return nil
}
