// Package embed generates text embeddings for vault chunks and queries.
package embed

import (
	"context"
	"errors"
)

// ErrEmbedderClosed is returned by operations on a closed embedder.
var ErrEmbedderClosed = errors.New("embedder is closed")

// Embedder turns text into dense vectors. Implementations must return a
// zero vector for empty input and an empty batch for an empty slice.
type Embedder interface {
	// Embed embeds a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds texts in order. len(out) == len(texts).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length this embedder produces.
	Dimensions() int
	// ModelName identifies the model, used to key caches.
	ModelName() string
	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool
	Close() error
}
