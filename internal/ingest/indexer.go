package ingest

import (
	"context"
	"fmt"

	"github.com/Raj-Randive/chatdocs/internal/llm"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"golang.org/x/sync/errgroup"
)

const defaultEmbedBatch = 100

// Indexer embeds page texts and writes them into a namespace of the shared
// vector index.
type Indexer struct {
	embedder    llm.Embedder
	vectors     repository.VectorRepository
	batchSize   int
	concurrency int
}

func NewIndexer(embedder llm.Embedder, vectors repository.VectorRepository, concurrency int) *Indexer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		embedder:    embedder,
		vectors:     vectors,
		batchSize:   defaultEmbedBatch,
		concurrency: concurrency,
	}
}

// Index replaces the namespace's vectors with one vector per non-empty page.
// Page numbers are 1-based. It returns the number of pages indexed.
func (ix *Indexer) Index(ctx context.Context, namespace string, pages []string) (int, error) {
	var vecs []repository.PageVector
	for i, text := range pages {
		if text == "" {
			continue
		}
		vecs = append(vecs, repository.PageVector{Page: i + 1, Content: text})
	}
	if len(vecs) == 0 {
		return 0, newError(KindParse, "no extractable text in %d pages", len(pages))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for start := 0; start < len(vecs); start += ix.batchSize {
		end := min(start+ix.batchSize, len(vecs))
		batch := vecs[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, v := range batch {
				texts[i] = v.Content
			}
			embeddings, err := ix.embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return err
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("got %d embeddings for %d pages", len(embeddings), len(batch))
			}
			// Each goroutine owns a disjoint slice of vecs.
			for i := range batch {
				batch[i].Embedding = embeddings[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, &Error{Kind: KindEmbed, Err: err}
	}

	if err := ix.vectors.ReplaceNamespace(ctx, namespace, vecs); err != nil {
		return 0, &Error{Kind: KindIndex, Err: err}
	}
	return len(vecs), nil
}

// Drop removes every vector in namespace.
func (ix *Indexer) Drop(ctx context.Context, namespace string) error {
	return ix.vectors.DeleteNamespace(ctx, namespace)
}
