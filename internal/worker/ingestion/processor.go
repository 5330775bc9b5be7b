package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/ingest"
	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/pgmq"

	"github.com/rs/zerolog"
)

// Ingestor is the pipeline a job drives.
type Ingestor interface {
	Process(ctx context.Context, fileID string) error
	Fail(ctx context.Context, fileID string, cause error, pageCount int) error
}

// DeadLetterSink stores jobs that exhausted their retries.
type DeadLetterSink interface {
	SendDeadLetter(ctx context.Context, dl model.DeadLetter) error
}

// RetryPolicy bounds how often and how fast a retryable failure is retried.
type RetryPolicy struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Timeout caps a single attempt.
	Timeout time.Duration
}

// visibilityMargin covers the status writes and dead-lettering after the last attempt.
const visibilityMargin = 30 * time.Second

func (rp RetryPolicy) nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if rp.BackoffMax > 0 && d > rp.BackoffMax {
		d = rp.BackoffMax
	}
	return d
}

// Window is the longest Handle can take with every attempt timing out. It is
// zero when attempts are not capped.
func (rp RetryPolicy) Window() time.Duration {
	if rp.Timeout <= 0 {
		return 0
	}
	retries := max(rp.MaxRetries, 1)
	total := time.Duration(retries) * rp.Timeout
	backoff := rp.BackoffInitial
	for i := 1; i < retries; i++ {
		total += backoff
		backoff = rp.nextBackoff(backoff)
	}
	return total
}

// VisibilityTimeout returns the seconds a read message must stay hidden so no
// other worker picks it up while Handle is still retrying it. The configured
// value wins when it is already long enough.
func (p *Processor) VisibilityTimeout(configuredSec int) int {
	window := p.policy.Window()
	if window == 0 {
		return configuredSec
	}
	need := int((window + visibilityMargin + time.Second - 1) / time.Second)
	return max(configuredSec, need)
}

// Processor executes ingestion jobs with retry, backoff and dead-lettering.
type Processor struct {
	ingestor Ingestor
	dlq      DeadLetterSink
	policy   RetryPolicy
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewProcessor(ingestor Ingestor, dlq DeadLetterSink, policy RetryPolicy, logger zerolog.Logger) *Processor {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}
	return &Processor{
		ingestor: ingestor,
		dlq:      dlq,
		policy:   policy,
		logger:   logger.With().Str("service", "ingestion-worker").Logger(),
		sleep:    sleepCtx,
	}
}

// Handle runs job until it succeeds, fails permanently, or runs out of
// retries. A nil return means the job is settled and can be acknowledged.
func (p *Processor) Handle(ctx context.Context, job model.IngestionJob) error {
	log := p.logger.With().Str("file_id", job.FileID).Logger()
	backoff := p.policy.BackoffInitial

	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxRetries; attempt++ {
		lastErr = p.attempt(ctx, job.FileID)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !ingest.IsRetryable(lastErr) {
			// Ingestor already recorded the permanent failure.
			return nil
		}
		log.Error().Err(lastErr).Int("attempt", attempt).Msg("Ingestion attempt failed, retrying")
		if attempt == p.policy.MaxRetries {
			break
		}
		if err := p.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = p.policy.nextBackoff(backoff)
	}

	log.Warn().
		Int("attempts", p.policy.MaxRetries).
		Err(lastErr).
		Msg("Exhausted all ingestion retries; moving job to DLQ")
	if err := p.ingestor.Fail(ctx, job.FileID, lastErr, 0); err != nil {
		return fmt.Errorf("recording failure of file %s: %w", job.FileID, err)
	}
	if p.dlq != nil {
		dl := model.DeadLetter{
			Job:      job,
			Error:    lastErr.Error(),
			FailedAt: time.Now().UTC(),
		}
		dl.Job.Attempt = p.policy.MaxRetries
		if kind, ok := ingest.KindOf(lastErr); ok {
			dl.FailureKind = string(kind)
		}
		if err := p.dlq.SendDeadLetter(ctx, dl); err != nil {
			log.Error().Err(err).Msg("Failed to send job to dead-letter queue")
		}
	}
	return nil
}

func (p *Processor) attempt(ctx context.Context, fileID string) error {
	if p.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.policy.Timeout)
		defer cancel()
	}
	return p.ingestor.Process(ctx, fileID)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PgmqDeadLetters writes dead letters to a pgmq queue.
type PgmqDeadLetters struct {
	client *pgmq.Client
	queue  string
}

func NewPgmqDeadLetters(client *pgmq.Client, queue string) *PgmqDeadLetters {
	return &PgmqDeadLetters{client: client, queue: queue}
}

func (d *PgmqDeadLetters) SendDeadLetter(ctx context.Context, dl model.DeadLetter) error {
	payload, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if _, err := d.client.Send(ctx, d.queue, payload, 0); err != nil {
		return fmt.Errorf("send dead letter for file %s: %w", dl.Job.FileID, err)
	}
	return nil
}

// DecodeJob parses a queue payload.
func DecodeJob(data []byte) (model.IngestionJob, error) {
	var job model.IngestionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("unmarshal ingestion job: %w", err)
	}
	if job.FileID == "" {
		return job, errors.New("ingestion job without file id")
	}
	return job, nil
}
