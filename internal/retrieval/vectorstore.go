package retrieval

import (
	"context"
	"time"
)

// VectorStore holds embedded documents in named collections and answers
// nearest-neighbour queries by cosine distance.
type VectorStore interface {
	// Add inserts or replaces documents, creating the collection on first use.
	// Documents without an ID get a generated one; the stored IDs are returned.
	Add(ctx context.Context, collection string, docs []Document) ([]string, error)

	// Query returns up to n documents closest to vector. where restricts the
	// candidates to documents whose metadata equals every given key/value.
	Query(ctx context.Context, collection string, vector []float32, n int, where map[string]any) ([]Match, error)

	// Delete removes documents by ID or by metadata filter. At least one of
	// ids and where must be non-empty.
	Delete(ctx context.Context, collection string, ids []string, where map[string]any) (int, error)

	// Stats reports the collection's document count and metadata.
	Stats(ctx context.Context, collection string) (CollectionStats, error)

	// Reset removes every document in the collection.
	Reset(ctx context.Context, collection string) error
}

// Document is a unit of text with its embedding.
type Document struct {
	ID        string
	Text      string
	Metadata  map[string]any
	Embedding []float32
	CreatedAt time.Time
}

// Match is a query hit. Distance is 1 - cosine similarity, so 0 is identical.
type Match struct {
	ID       string         `json:"id"`
	Document string         `json:"document"`
	Metadata map[string]any `json:"metadata"`
	Distance float32        `json:"distance"`
}

type CollectionStats struct {
	Name     string         `json:"name"`
	Count    int            `json:"count"`
	Metadata map[string]any `json:"metadata"`
}
