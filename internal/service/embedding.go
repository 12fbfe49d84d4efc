package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultEmbedConcurrency caps in-flight embedding requests per file.
const DefaultEmbedConcurrency = 4

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder embeds many texts with a bounded number of concurrent calls.
type BatchEmbedder struct {
	client      EmbeddingClient
	concurrency int
}

// NewBatchEmbedder creates a BatchEmbedder. concurrency <= 0 uses DefaultEmbedConcurrency.
func NewBatchEmbedder(client EmbeddingClient, concurrency int) *BatchEmbedder {
	if concurrency <= 0 {
		concurrency = DefaultEmbedConcurrency
	}
	return &BatchEmbedder{client: client, concurrency: concurrency}
}

// EmbedAll returns one vector per text, in input order. The first failure
// cancels the outstanding calls.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			vector, err := b.client.GenerateEmbedding(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}
