package pgmq

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Client wraps a Postgres pool for pgmq queue operations.
type Client struct {
	pool *pgxpool.Pool
}

// New returns a new PGMQ client backed by the given pool.
func New(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Message represents a single pgmq message.
type Message struct {
	ID     int64  // message identifier
	ReadCt int    // times the message has been read
	Data   []byte // raw JSON payload
}

// EnsureQueues installs the extension and creates the queues if missing.
func (c *Client) EnsureQueues(ctx context.Context, queues ...string) error {
	if _, err := c.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS pgmq"); err != nil {
		return fmt.Errorf("pgmq extension: %w", err)
	}
	for _, q := range queues {
		if _, err := c.pool.Exec(ctx, "SELECT pgmq.create($1)", q); err != nil {
			return fmt.Errorf("pgmq create %s: %w", q, err)
		}
	}
	return nil
}

// Send pushes a JSON payload into the given queue, visible after delaySec seconds.
func (c *Client) Send(ctx context.Context, queue string, payload []byte, delaySec int) (int64, error) {
	var id int64
	query := "SELECT pgmq.send($1, $2::jsonb, $3)"
	if err := c.pool.QueryRow(ctx, query, queue, string(payload), delaySec).Scan(&id); err != nil {
		return 0, fmt.Errorf("pgmq send failed: %w", err)
	}
	return id, nil
}

// ReadWithPoll reads up to maxMessages from the queue, blocking up to timeoutSec seconds.
// Read messages stay invisible for vtSec seconds.
func (c *Client) ReadWithPoll(ctx context.Context, queue string, vtSec, maxMessages, timeoutSec int) ([]*Message, error) {
	query := "SELECT msg_id, read_ct, message FROM pgmq.read_with_poll($1, $2, $3, $4)"
	rows, err := c.pool.Query(ctx, query, queue, vtSec, maxMessages, timeoutSec)
	if err != nil {
		return nil, fmt.Errorf("pgmq read_with_poll failed: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Message, error) {
		var m Message
		err := row.Scan(&m.ID, &m.ReadCt, &m.Data)
		return &m, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgmq read scan failed: %w", err)
	}
	return msgs, nil
}

// Delete removes messages by their IDs from the specified queue.
func (c *Client) Delete(ctx context.Context, queue string, msgIDs []int64) error {
	query := "SELECT pgmq.delete($1, $2::bigint[])"
	if _, err := c.pool.Exec(ctx, query, queue, msgIDs); err != nil {
		return fmt.Errorf("pgmq delete failed: %w", err)
	}
	return nil
}

// SetVisibility hides a message for another vtSec seconds.
func (c *Client) SetVisibility(ctx context.Context, queue string, msgID int64, vtSec int) error {
	if _, err := c.pool.Exec(ctx, "SELECT pgmq.set_vt($1, $2, $3)", queue, msgID, vtSec); err != nil {
		return fmt.Errorf("pgmq set_vt failed: %w", err)
	}
	return nil
}
