// Package ingest turns an uploaded PDF into per-page vectors in the file's
// namespace and records the outcome on the file row.
package ingest

import (
	"errors"
	"fmt"
)

// Kind classifies why an ingestion attempt failed.
type Kind string

const (
	KindQuota Kind = "Quota"
	KindFetch Kind = "Fetch"
	KindParse Kind = "Parse"
	KindEmbed Kind = "Embed"
	KindIndex Kind = "Index"
)

// Error is the failure of one ingestion stage.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed. Quota and Parse
// failures depend only on the document and never change on retry.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindFetch, KindEmbed, KindIndex:
		return true
	default:
		return false
	}
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

// IsRetryable reports whether err carries a retryable ingestion failure.
// Errors without a Kind (database hiccups while loading the file) are retried.
func IsRetryable(err error) bool {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Retryable()
	}
	return err != nil
}
