package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Raj-Randive/chatdocs/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FileRepository interface {
	// CreateIfAbsent inserts f unless a file with the same key exists. The
	// returned bool is false when the existing row was returned instead.
	CreateIfAbsent(ctx context.Context, f *model.File) (*model.File, bool, error)
	GetFile(ctx context.Context, fileID string) (*model.File, error)
	GetUserFile(ctx context.Context, fileID, userID string) (*model.File, error)
	GetUserFileByKey(ctx context.Context, key, userID string) (*model.File, error)
	ListUserFiles(ctx context.Context, userID string) ([]model.File, error)
	// UpdateStatus moves a non-terminal file to status. Terminal files are left
	// untouched; a missing file is ErrNotFound.
	UpdateStatus(ctx context.Context, fileID string, status model.UploadStatus, upd StatusDetails) error
	// DeleteUserFile removes the file's vectors and its row (messages cascade)
	// in one transaction.
	DeleteUserFile(ctx context.Context, fileID, userID string) error
}

// StatusDetails carries optional columns written alongside a status change.
type StatusDetails struct {
	FailureKind   string
	FailureDetail string
	PageCount     *int
}

type fileRepo struct {
	pool *pgxpool.Pool
}

func NewFileRepo(pool *pgxpool.Pool) FileRepository {
	return &fileRepo{pool: pool}
}

const fileColumns = `id, key, name, user_id, url, upload_status, failure_kind, failure_detail, page_count, created_at, updated_at`

func scanFile(row pgx.Row) (*model.File, error) {
	var f model.File
	if err := row.Scan(
		&f.ID,
		&f.Key,
		&f.Name,
		&f.UserID,
		&f.URL,
		&f.UploadStatus,
		&f.FailureKind,
		&f.FailureDetail,
		&f.PageCount,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *fileRepo) CreateIfAbsent(ctx context.Context, f *model.File) (*model.File, bool, error) {
	q := `
		INSERT INTO files (key, name, user_id, url, upload_status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
		RETURNING ` + fileColumns
	created, err := scanFile(r.pool.QueryRow(ctx, q, f.Key, f.Name, f.UserID, f.URL, f.UploadStatus))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("creating file %s: %w", f.Key, err)
	}

	existing, err := scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE key = $1`, f.Key))
	if err != nil {
		return nil, false, fmt.Errorf("loading existing file %s: %w", f.Key, err)
	}
	return existing, false, nil
}

func (r *fileRepo) GetFile(ctx context.Context, fileID string) (*model.File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting file %s: %w", fileID, err)
	}
	return f, nil
}

func (r *fileRepo) GetUserFile(ctx context.Context, fileID, userID string) (*model.File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1 AND user_id = $2`, fileID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
		}
		return nil, fmt.Errorf("getting file %s: %w", fileID, err)
	}
	return f, nil
}

func (r *fileRepo) GetUserFileByKey(ctx context.Context, key, userID string) (*model.File, error) {
	f, err := scanFile(r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE key = $1 AND user_id = $2`, key, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file with key %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("getting file by key %s: %w", key, err)
	}
	return f, nil
}

func (r *fileRepo) ListUserFiles(ctx context.Context, userID string) ([]model.File, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+fileColumns+` FROM files WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating file rows: %w", err)
	}
	return files, nil
}

func (r *fileRepo) UpdateStatus(ctx context.Context, fileID string, status model.UploadStatus, upd StatusDetails) error {
	const q = `
		UPDATE files
		SET upload_status = $2,
			failure_kind = NULLIF($3, ''),
			failure_detail = NULLIF($4, ''),
			page_count = COALESCE($5, page_count),
			updated_at = NOW()
		WHERE id = $1
		  AND upload_status NOT IN ('SUCCESS', 'FAILED')
	`
	tag, err := r.pool.Exec(ctx, q, fileID, status, upd.FailureKind, upd.FailureDetail, upd.PageCount)
	if err != nil {
		return fmt.Errorf("updating status of file %s to %s: %w", fileID, status, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM files WHERE id = $1)`, fileID).Scan(&exists); err != nil {
		return fmt.Errorf("checking file %s: %w", fileID, err)
	}
	if !exists {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	return nil
}

func (r *fileRepo) DeleteUserFile(ctx context.Context, fileID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting delete transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Same row lock as ReplaceNamespace, so an ingestion commit either lands
	// before this delete or sees the file gone.
	var id string
	err = tx.QueryRow(ctx, `SELECT id FROM files WHERE id = $1 AND user_id = $2 FOR UPDATE`, fileID, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
		}
		return fmt.Errorf("locking file %s: %w", fileID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM file_vectors WHERE namespace = $1`, fileID); err != nil {
		return fmt.Errorf("deleting vectors of file %s: %w", fileID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID); err != nil {
		return fmt.Errorf("deleting file %s: %w", fileID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing delete of file %s: %w", fileID, err)
	}
	return nil
}
