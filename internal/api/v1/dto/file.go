package dto

import "time"

// PresignUploadRequest asks for a direct upload URL.
type PresignUploadRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,eq=application/pdf"`
	SizeBytes   int64  `json:"size" validate:"required,gt=0"`
}

type PresignUploadResponse struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type FileResponseDTO struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	UploadStatus string    `json:"uploadStatus"`
	FailureKind  string    `json:"failureKind,omitempty"`
	PageCount    *int      `json:"pageCount,omitempty"`
	ViewURL      string    `json:"viewUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UploadStatusResponse struct {
	Status string `json:"status"`
}

// UploadCompleteResponse acknowledges an upload callback.
type UploadCompleteResponse struct {
	FileID    string `json:"fileId"`
	Duplicate bool   `json:"duplicate"`
}
