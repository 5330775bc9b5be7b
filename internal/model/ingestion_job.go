package model

import "time"

// IngestionJob is the payload carried by the ingestion queue.
type IngestionJob struct {
	FileID     string    `json:"file_id"`
	Attempt    int       `json:"attempt,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeadLetter wraps a job that exhausted its retries.
type DeadLetter struct {
	Job         IngestionJob `json:"job"`
	FailureKind string       `json:"failure_kind"`
	Error       string       `json:"error"`
	FailedAt    time.Time    `json:"failed_at"`
}
