package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/store"
)

// Embedder is the query-side embedding dependency.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrieverConfig holds the fusion parameters.
type RetrieverConfig struct {
	VectorWeight float64
	BM25Weight   float64
	RRFConstant  int
}

// DefaultRetrieverConfig favors the dense branch, which handles the
// paraphrased queries typical of personal notes better than exact terms.
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		VectorWeight: 0.7,
		BM25Weight:   0.3,
		RRFConstant:  DefaultRRFConstant,
	}
}

// Retriever runs hybrid retrieval: dense and lexical branches in parallel,
// fused with weighted RRF.
type Retriever struct {
	embedder Embedder
	vectors  store.VectorStore
	lexical  *LexicalIndex
	corpus   CorpusSource
	config   RetrieverConfig
}

// NewRetriever wires the two branches together. corpus backs lazy lexical
// rebuilds and may be nil when rebuilds are driven externally.
func NewRetriever(embedder Embedder, vectors store.VectorStore, lexical *LexicalIndex, corpus CorpusSource, cfg RetrieverConfig) *Retriever {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = DefaultRRFConstant
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		corpus:   corpus,
		config:   cfg,
	}
}

// Retrieve returns up to k fused results for the query. An empty or
// whitespace query returns an empty slice without touching either branch.
// Each branch over-fetches 2k candidates so fusion has enough overlap to
// work with.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter store.SearchFilter) ([]note.SearchResult, error) {
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []note.SearchResult{}, nil
	}

	if err := r.lexical.EnsureFresh(ctx, r.corpus, nil); err != nil {
		return nil, err
	}

	start := time.Now()
	fetch := k * 2

	var (
		vectorResults  []note.SearchResult
		lexicalResults []note.SearchResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		vectorResults, err = r.vectors.Search(gctx, vec, fetch, filter)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		results, err := r.lexical.Search(gctx, query, fetch)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		if !filter.IsZero() {
			filtered := results[:0]
			for _, res := range results {
				if filter.Matches(res.Chunk) {
					filtered = append(filtered, res)
				}
			}
			results = filtered
		}
		lexicalResults = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(vectorResults, lexicalResults,
		r.config.VectorWeight, r.config.BM25Weight, r.config.RRFConstant, k)

	slog.Debug("hybrid retrieval",
		"query_len", len(query),
		"vector_hits", len(vectorResults),
		"lexical_hits", len(lexicalResults),
		"fused", len(fused),
		"duration", time.Since(start))
	return fused, nil
}

// MarkDirty flags the lexical branch stale after corpus mutations.
func (r *Retriever) MarkDirty() {
	r.lexical.MarkDirty()
}
