package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUploadLimitExceeded is returned when a user has used up the uploads of their plan.
var ErrUploadLimitExceeded = errors.New("upload_limit_exceeded")

const EventFileUpload = "file_upload"

// UsageRepository tracks per-user events for plan quotas.
type UsageRepository interface {
	// ReserveUpload counts uploads in [start, end) and records one more in the
	// same serializable transaction. Returns ErrUploadLimitExceeded at the limit.
	ReserveUpload(ctx context.Context, userID string, start, end time.Time, limit int) error
	CountUploads(ctx context.Context, userID string, start, end time.Time) (int, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

const countEventsQ = `
	SELECT COUNT(*)
	FROM usage_events
	WHERE user_id = $1
	  AND event_type = $2
	  AND created_at >= $3
	  AND created_at < $4
`

func (r *usageRepo) ReserveUpload(ctx context.Context, userID string, start, end time.Time, limit int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("starting upload reservation: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var used int
	if err := tx.QueryRow(ctx, countEventsQ, userID, EventFileUpload, start, end).Scan(&used); err != nil {
		return fmt.Errorf("counting uploads for user %s: %w", userID, err)
	}
	if limit > 0 && used >= limit {
		return ErrUploadLimitExceeded
	}
	if _, err := tx.Exec(ctx, `INSERT INTO usage_events (user_id, event_type) VALUES ($1, $2)`, userID, EventFileUpload); err != nil {
		return fmt.Errorf("recording upload for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing upload reservation for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRepo) CountUploads(ctx context.Context, userID string, start, end time.Time) (int, error) {
	var used int
	if err := r.pool.QueryRow(ctx, countEventsQ, userID, EventFileUpload, start, end).Scan(&used); err != nil {
		return 0, fmt.Errorf("counting uploads for user %s: %w", userID, err)
	}
	return used, nil
}

// MonthWindow returns the calendar month containing t, in UTC.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
