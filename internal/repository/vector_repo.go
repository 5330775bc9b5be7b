package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Raj-Randive/chatdocs/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PageVector is one embedded page destined for a namespace.
type PageVector struct {
	Page      int
	Content   string
	Embedding []float32
}

// VectorRepository is the shared vector index, partitioned by namespace.
type VectorRepository interface {
	// ReplaceNamespace swaps the namespace's vectors for vecs atomically. The
	// namespace is a file id; ErrNotFound means the file was deleted and
	// nothing was written.
	ReplaceNamespace(ctx context.Context, namespace string, vecs []PageVector) error
	// Search returns the k nearest pages in namespace by L2 distance.
	Search(ctx context.Context, namespace string, query []float32, k int) ([]model.Passage, error)
	DeleteNamespace(ctx context.Context, namespace string) error
	CountNamespace(ctx context.Context, namespace string) (int, error)
}

type vectorRepo struct {
	pool *pgxpool.Pool
}

func NewVectorRepo(pool *pgxpool.Pool) VectorRepository {
	return &vectorRepo{pool: pool}
}

func (r *vectorRepo) ReplaceNamespace(ctx context.Context, namespace string, vecs []PageVector) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting index transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Holds the file row against a concurrent DeleteUserFile until commit.
	var one int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM files WHERE id = $1 FOR UPDATE`, namespace).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("file %s: %w", namespace, ErrNotFound)
		}
		return fmt.Errorf("locking file %s: %w", namespace, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM file_vectors WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("clearing namespace %s: %w", namespace, err)
	}

	const insertQ = `
		INSERT INTO file_vectors (namespace, page, content, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, page) DO UPDATE
		SET content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`
	batch := &pgx.Batch{}
	for _, v := range vecs {
		batch.Queue(insertQ, namespace, v.Page, v.Content, pgvector.NewVector(v.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("indexing %d pages into namespace %s: %w", len(vecs), namespace, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing namespace %s: %w", namespace, err)
	}
	return nil
}

func (r *vectorRepo) Search(ctx context.Context, namespace string, query []float32, k int) ([]model.Passage, error) {
	const q = `
		SELECT page, content, embedding <-> $2 AS distance
		FROM file_vectors
		WHERE namespace = $1
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, q, namespace, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("searching namespace %s: %w", namespace, err)
	}
	passages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Passage, error) {
		var p model.Passage
		err := row.Scan(&p.Page, &p.Content, &p.Distance)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning search results: %w", err)
	}
	return passages, nil
}

func (r *vectorRepo) DeleteNamespace(ctx context.Context, namespace string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM file_vectors WHERE namespace = $1`, namespace); err != nil {
		return fmt.Errorf("deleting namespace %s: %w", namespace, err)
	}
	return nil
}

func (r *vectorRepo) CountNamespace(ctx context.Context, namespace string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM file_vectors WHERE namespace = $1`, namespace).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting namespace %s: %w", namespace, err)
	}
	return n, nil
}
