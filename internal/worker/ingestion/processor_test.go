package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/ingest"
	"github.com/Raj-Randive/chatdocs/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type scriptedIngestor struct {
	errs   []error
	calls  int
	failed error
}

func (s *scriptedIngestor) Process(ctx context.Context, fileID string) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedIngestor) Fail(ctx context.Context, fileID string, cause error, pageCount int) error {
	s.failed = cause
	return nil
}

type memoryDLQ struct {
	letters []model.DeadLetter
}

func (m *memoryDLQ) SendDeadLetter(ctx context.Context, dl model.DeadLetter) error {
	m.letters = append(m.letters, dl)
	return nil
}

func newTestProcessor(ing Ingestor, dlq DeadLetterSink, retries int) (*Processor, *[]time.Duration) {
	p := NewProcessor(ing, dlq, RetryPolicy{
		MaxRetries:     retries,
		BackoffInitial: time.Second,
		BackoffMax:     3 * time.Second,
	}, zerolog.Nop())
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func embedErr() error {
	return &ingest.Error{Kind: ingest.KindEmbed, Err: errors.New("503")}
}

func TestHandleRetriesThenSucceeds(t *testing.T) {
	ing := &scriptedIngestor{errs: []error{embedErr(), embedErr()}}
	dlq := &memoryDLQ{}
	p, slept := newTestProcessor(ing, dlq, 3)

	require.NoError(t, p.Handle(context.Background(), model.IngestionJob{FileID: "f-1"}))
	require.Equal(t, 3, ing.calls)
	require.Nil(t, ing.failed)
	require.Empty(t, dlq.letters)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestHandleExhaustedRetriesGoToDLQ(t *testing.T) {
	ing := &scriptedIngestor{errs: []error{embedErr(), embedErr(), embedErr(), embedErr()}}
	dlq := &memoryDLQ{}
	p, slept := newTestProcessor(ing, dlq, 4)

	require.NoError(t, p.Handle(context.Background(), model.IngestionJob{FileID: "f-1"}))
	require.Equal(t, 4, ing.calls)
	require.Error(t, ing.failed)
	require.Len(t, dlq.letters, 1)
	require.Equal(t, "Embed", dlq.letters[0].FailureKind)
	require.Equal(t, 4, dlq.letters[0].Job.Attempt)
	// Backoff doubles and is capped.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *slept)
}

func TestHandlePermanentFailureIsNotRetried(t *testing.T) {
	ing := &scriptedIngestor{errs: []error{&ingest.Error{Kind: ingest.KindQuota, Err: errors.New("10 pages")}}}
	dlq := &memoryDLQ{}
	p, _ := newTestProcessor(ing, dlq, 3)

	require.NoError(t, p.Handle(context.Background(), model.IngestionJob{FileID: "f-1"}))
	require.Equal(t, 1, ing.calls)
	require.Nil(t, ing.failed)
	require.Empty(t, dlq.letters)
}

func TestHandleStopsOnCancelledContext(t *testing.T) {
	ing := &scriptedIngestor{errs: []error{embedErr()}}
	p, _ := newTestProcessor(ing, nil, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.Handle(ctx, model.IngestionJob{FileID: "f-1"}), context.Canceled)
	require.Nil(t, ing.failed)
}

func TestDecodeJob(t *testing.T) {
	job, err := DecodeJob([]byte(`{"file_id":"f-9"}`))
	require.NoError(t, err)
	require.Equal(t, "f-9", job.FileID)

	_, err = DecodeJob([]byte(`{}`))
	require.Error(t, err)
	_, err = DecodeJob([]byte(`nope`))
	require.Error(t, err)
}

func TestRetryWindowCoversEveryAttempt(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:     3,
		BackoffInitial: time.Second,
		BackoffMax:     30 * time.Second,
		Timeout:        300 * time.Second,
	}
	// Three timed-out attempts plus 1s and 2s of backoff.
	require.Equal(t, 903*time.Second, policy.Window())

	p := NewProcessor(&scriptedIngestor{}, nil, policy, zerolog.Nop())
	require.Equal(t, 933, p.VisibilityTimeout(300))
	require.Equal(t, 3600, p.VisibilityTimeout(3600))
}

func TestRetryWindowCapsBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries:     5,
		BackoffInitial: 10 * time.Second,
		BackoffMax:     15 * time.Second,
		Timeout:        time.Minute,
	}
	// Sleeps are 10s, 15s, 15s, 15s.
	require.Equal(t, 5*time.Minute+55*time.Second, policy.Window())
}

func TestVisibilityTimeoutWithoutAttemptCap(t *testing.T) {
	p := NewProcessor(&scriptedIngestor{}, nil, RetryPolicy{MaxRetries: 3, BackoffInitial: time.Second}, zerolog.Nop())
	require.Zero(t, p.policy.Window())
	require.Equal(t, 300, p.VisibilityTimeout(300))
}
