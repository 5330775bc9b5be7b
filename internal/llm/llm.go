// Package llm wraps the hosted embedding and completion models behind small
// interfaces so the ingestion and chat pipelines can be tested with fakes.
package llm

import (
	"context"
	"io"
)

// Embedder turns text into vectors. Documents and queries must come from the
// same model or retrieval quality silently degrades.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Prompt is a single-turn request with a system instruction.
type Prompt struct {
	System string
	User   string
}

// Stream yields completion chunks. Next returns io.EOF after the last chunk.
type Stream interface {
	Next() (string, error)
	Close() error
}

// Generator opens streaming completions.
type Generator interface {
	Stream(ctx context.Context, p Prompt) (Stream, error)
}

// Collect drains s into a single string.
func Collect(s Stream) (string, error) {
	defer s.Close()
	var out []byte
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			return string(out), nil
		}
		if err != nil {
			return string(out), err
		}
		out = append(out, chunk...)
	}
}
