package repository

import (
	"context"
	"fmt"

	"github.com/Raj-Randive/chatdocs/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository interface {
	CreateMessage(ctx context.Context, fileID, userID, text string, isUserMessage bool) (*model.Message, error)
	// ListRecent returns the newest n messages of a file, oldest first.
	ListRecent(ctx context.Context, fileID string, n int) ([]model.Message, error)
	// ListPage returns up to limit messages newest first, starting at cursor
	// (inclusive) when cursor is non-empty.
	ListPage(ctx context.Context, fileID, cursor string, limit int) ([]model.Message, error)
}

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) MessageRepository {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) CreateMessage(ctx context.Context, fileID, userID, text string, isUserMessage bool) (*model.Message, error) {
	const q = `
		INSERT INTO messages (text, is_user_message, user_id, file_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, text, is_user_message, user_id, file_id, created_at
	`
	var m model.Message
	err := r.pool.QueryRow(ctx, q, text, isUserMessage, userID, fileID).Scan(
		&m.ID,
		&m.Text,
		&m.IsUserMessage,
		&m.UserID,
		&m.FileID,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}
	return &m, nil
}

func (r *messageRepo) ListRecent(ctx context.Context, fileID string, n int) ([]model.Message, error) {
	const q = `
		SELECT id, text, is_user_message, user_id, file_id, created_at
		FROM messages
		WHERE file_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	msgs, err := r.query(ctx, q, fileID, n)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepo) ListPage(ctx context.Context, fileID, cursor string, limit int) ([]model.Message, error) {
	if cursor == "" {
		const q = `
			SELECT id, text, is_user_message, user_id, file_id, created_at
			FROM messages
			WHERE file_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`
		return r.query(ctx, q, fileID, limit)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND file_id = $2)`, cursor, fileID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking cursor %s: %w", cursor, err)
	}
	if !exists {
		return nil, fmt.Errorf("cursor %s: %w", cursor, ErrNotFound)
	}

	// Row comparison keeps the order stable when two messages share a timestamp.
	const q = `
		SELECT m.id, m.text, m.is_user_message, m.user_id, m.file_id, m.created_at
		FROM messages m, (SELECT created_at, id FROM messages WHERE id = $2) c
		WHERE m.file_id = $1
		  AND (m.created_at, m.id) <= (c.created_at, c.id)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3
	`
	return r.query(ctx, q, fileID, cursor, limit)
}

func (r *messageRepo) query(ctx context.Context, q string, args ...any) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Message, error) {
		var m model.Message
		err := row.Scan(&m.ID, &m.Text, &m.IsUserMessage, &m.UserID, &m.FileID, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
