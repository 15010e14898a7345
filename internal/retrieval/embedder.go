package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// EmbedBatchSize is the number of texts embedded per batch.
const EmbedBatchSize = 32

// EmbedBackend turns one text into a vector.
type EmbedBackend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedder generates embeddings through a backend. With fallback enabled a
// failing backend yields zero vectors of the configured dimension instead
// of an error.
type Embedder struct {
	backend    EmbedBackend
	dimensions int
	fallback   bool
}

// NewEmbedder creates an Embedder that returns backend errors to the caller.
func NewEmbedder(b EmbedBackend, dimensions int) *Embedder {
	return &Embedder{backend: b, dimensions: dimensions}
}

// NewFallbackEmbedder creates an Embedder that logs backend failures and
// returns zero vectors.
func NewFallbackEmbedder(b EmbedBackend, dimensions int) *Embedder {
	return &Embedder{backend: b, dimensions: dimensions, fallback: true}
}

// Dimensions returns the configured vector size.
func (e *Embedder) Dimensions() int { return e.dimensions }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.backend.Embed(ctx, text)
	if err != nil {
		if e.fallback && ctx.Err() == nil {
			slog.Warn("embedding failed, using zero vector", "error", err)
			return make([]float32, e.dimensions), nil
		}
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts, processed in
// batches of EmbedBatchSize with bounded concurrency inside each batch.
// Returns nil (not error) for empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(texts))

		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := e.Embed(gCtx, texts[i])
				if err != nil {
					return fmt.Errorf("text %d: %w", i, err)
				}
				results[i] = vec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return results, nil
}
