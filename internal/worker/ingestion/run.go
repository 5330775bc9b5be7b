package ingestion

import (
	"context"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/pgmq"

	"github.com/rs/zerolog"
)

// PollOptions configures the pgmq consumer loop.
type PollOptions struct {
	Queue             string
	PollTimeoutSec    int
	MaxMessages       int
	// VisibilityTimeout is raised to cover the processor's retry window.
	VisibilityTimeout int
}

// Run consumes the ingestion queue until ctx is cancelled.
func Run(ctx context.Context, logger zerolog.Logger, client *pgmq.Client, proc *Processor, opts PollOptions) error {
	vt := proc.VisibilityTimeout(opts.VisibilityTimeout)
	if vt != opts.VisibilityTimeout {
		logger.Warn().
			Int("configured_sec", opts.VisibilityTimeout).
			Int("effective_sec", vt).
			Msg("Visibility timeout shorter than the retry window; raising it")
	}
	logger.Info().Str("queue", opts.Queue).Int("visibility_timeout_sec", vt).Msg("Starting ingestion worker")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down ingestion worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, opts.Queue, vt, opts.MaxMessages, opts.PollTimeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.Error().Err(err).Msg("Error reading ingestion queue")
			_ = sleepCtx(ctx, time.Second)
			continue
		}

		for _, msg := range msgs {
			job, err := DecodeJob(msg.Data)
			if err != nil {
				logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to decode ingestion payload; deleting message")
				if err := client.Delete(ctx, opts.Queue, []int64{msg.ID}); err != nil {
					logger.Error().Err(err).Msg("Error deleting malformed ingestion message")
				}
				continue
			}

			logger.Info().Int64("msg_id", msg.ID).Str("file_id", job.FileID).Int("read_ct", msg.ReadCt).Msg("Received ingestion job")
			if err := proc.Handle(ctx, job); err != nil {
				// Left on the queue; it becomes visible again after the visibility timeout.
				logger.Error().Err(err).Str("file_id", job.FileID).Msg("Ingestion job not settled")
				continue
			}
			if err := client.Delete(ctx, opts.Queue, []int64{msg.ID}); err != nil {
				logger.Error().Err(err).Msg("Error deleting ingestion message")
			}
		}
	}
}
