package model

import "time"

// UploadStatus is the ingestion state of a File.
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "PENDING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusFailed     UploadStatus = "FAILED"
	UploadStatusSuccess    UploadStatus = "SUCCESS"
)

// Terminal reports whether no further transition is expected.
func (s UploadStatus) Terminal() bool {
	return s == UploadStatusFailed || s == UploadStatusSuccess
}

type File struct {
	ID            string       `db:"id" json:"id"`
	Key           string       `db:"key" json:"key"`
	Name          string       `db:"name" json:"name"`
	UserID        string       `db:"user_id" json:"user_id"`
	URL           string       `db:"url" json:"url"`
	UploadStatus  UploadStatus `db:"upload_status" json:"upload_status"`
	FailureKind   *string      `db:"failure_kind" json:"failure_kind,omitempty"`
	FailureDetail *string      `db:"failure_detail" json:"failure_detail,omitempty"`
	PageCount     *int         `db:"page_count" json:"page_count,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}
