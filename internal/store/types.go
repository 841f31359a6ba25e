// Package store persists index state: chunk vectors in an HNSW graph and
// document metadata, extracted items, and the embedding cache in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mindvault/mindvault/internal/note"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrDimensionMismatch indicates a vector of the wrong dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// SearchFilter restricts vector search results. Zero value matches all.
type SearchFilter struct {
	// Tags requires at least one matching chunk tag.
	Tags []string
	// PathPrefix restricts to documents under a vault subtree.
	PathPrefix string
	// Kinds restricts by chunk kind.
	Kinds []note.ChunkKind
}

// IsZero reports whether the filter imposes no restrictions.
func (f SearchFilter) IsZero() bool {
	return len(f.Tags) == 0 && f.PathPrefix == "" && len(f.Kinds) == 0
}

// Matches reports whether a chunk passes the filter.
func (f SearchFilter) Matches(c *note.Chunk) bool {
	if f.PathPrefix != "" && !strings.HasPrefix(c.DocumentPath, f.PathPrefix) {
		return false
	}
	if len(f.Kinds) > 0 {
		ok := false
		for _, k := range f.Kinds {
			if c.Kind == k {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Tags) > 0 {
		ok := false
		for _, want := range f.Tags {
			for _, have := range c.Tags {
				if have == want {
					ok = true
					break
				}
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// VectorStore indexes chunk embeddings for nearest-neighbor search.
type VectorStore interface {
	// Upsert inserts or replaces chunk vectors. len(chunks) must equal
	// len(vectors).
	Upsert(ctx context.Context, chunks []note.Chunk, vectors [][]float32) error
	// Search returns up to k results scored in [0,1], most similar first,
	// honoring the filter.
	Search(ctx context.Context, query []float32, k int, filter SearchFilter) ([]note.SearchResult, error)
	// DeleteByDocument removes every chunk of a document.
	DeleteByDocument(ctx context.Context, docID string) error
	// Clear removes everything.
	Clear(ctx context.Context) error
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}
