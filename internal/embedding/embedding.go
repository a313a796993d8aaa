// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates an embedder was constructed or called with
	// configuration that cannot work, such as a dimension mismatch.
	ErrInvalidConfig = errors.New("embedding: invalid config")

	// ErrEmptyInput indicates the caller passed no text to embed.
	ErrEmptyInput = errors.New("embedding: empty input")

	// ErrGeneration indicates the underlying model failed to produce
	// embeddings. It is always propagated, never recovered.
	ErrGeneration = errors.New("embedding: generation failed")
)

// Embedder converts text into fixed-dimension vectors. Identical input
// yields effectively identical output for a fixed model version, and batch
// embedding never alters results relative to embedding one text at a time.
// Construction is expensive; one instance is shared for the process lifetime.
type Embedder interface {
	// EmbedDocuments embeds a batch of document texts in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a single query text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the fixed length of produced vectors.
	Dimension() int
	// Close releases resources held by the embedder.
	Close() error
}
