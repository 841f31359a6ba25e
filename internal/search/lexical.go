// Package search implements the hybrid retrieval core: an in-memory BM25
// index, dense vector search, reciprocal rank fusion, and token-budgeted
// context packing.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	regexpTokenizer "github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
	index "github.com/blevesearch/bleve_index_api"

	"github.com/mindvault/mindvault/internal/note"
)

const (
	noteTokenizerName = "note_tokenizer"
	noteAnalyzerName  = "note_analyzer"
)

// CorpusSource supplies the chunk corpus for lexical rebuilds. Satisfied by
// store.MetadataStore.
type CorpusSource interface {
	AllChunks(ctx context.Context) ([]note.Chunk, error)
}

// LexicalIndex is an in-memory BM25 index over the chunk corpus. It is
// rebuilt lazily: mutations to the backing corpus mark it dirty and the
// next search rebuilds before scoring. BM25 parameters are bleve's
// defaults (k1=1.2, b=0.75) and are constant for the life of a build.
//
// States are {fresh, dirty}; the transition to fresh happens only inside
// EnsureFresh under the mutex, so concurrent rebuilds cannot race and a
// second waiter finds the index fresh and skips.
type LexicalIndex struct {
	mu     sync.Mutex
	index  bleve.Index
	chunks map[string]*note.Chunk
	dirty  bool
}

// NewLexicalIndex creates an empty index, born dirty so the first search
// triggers a build.
func NewLexicalIndex() *LexicalIndex {
	return &LexicalIndex{dirty: true}
}

// noteIndexMapping builds the analyzer shared by documents and queries:
// split on non-alphanumeric runs (underscore kept), then lowercase.
// Queries are analyzed with the indexed field's analyzer, so the two sides
// can never diverge.
func noteIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomTokenizer(noteTokenizerName, map[string]any{
		"type":   regexpTokenizer.Name,
		"regexp": `[a-zA-Z0-9_]+`,
	}); err != nil {
		return nil, fmt.Errorf("register tokenizer: %w", err)
	}
	if err := m.AddCustomAnalyzer(noteAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     noteTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	m.DefaultAnalyzer = noteAnalyzerName
	m.ScoringModel = index.BM25Scoring
	return m, nil
}

type lexicalDoc struct {
	Content string `json:"content"`
}

// MarkDirty flags the index stale. Called by the synchronizer after any
// document mutation.
func (l *LexicalIndex) MarkDirty() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dirty = true
}

// Dirty reports staleness.
func (l *LexicalIndex) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// EnsureFresh rebuilds from the source if dirty. With a nil corpus the
// source is queried; a non-nil corpus is used as-is.
func (l *LexicalIndex) EnsureFresh(ctx context.Context, source CorpusSource, corpus []note.Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}

	if corpus == nil && source != nil {
		var err error
		corpus, err = source.AllChunks(ctx)
		if err != nil {
			return fmt.Errorf("load lexical corpus: %w", err)
		}
	}
	return l.rebuildLocked(corpus)
}

// Rebuild replaces the index contents with the given corpus.
func (l *LexicalIndex) Rebuild(chunks []note.Chunk) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rebuildLocked(chunks)
}

func (l *LexicalIndex) rebuildLocked(chunks []note.Chunk) error {
	if l.index != nil {
		_ = l.index.Close()
		l.index = nil
	}
	l.chunks = make(map[string]*note.Chunk, len(chunks))

	if len(chunks) == 0 {
		// Empty corpus: index absent, every score is zero.
		l.dirty = false
		return nil
	}

	m, err := noteIndexMapping()
	if err != nil {
		return err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return fmt.Errorf("create lexical index: %w", err)
	}

	batch := idx.NewBatch()
	for i := range chunks {
		c := chunks[i]
		if err := batch.Index(c.ID, lexicalDoc{Content: c.Content}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		l.chunks[c.ID] = &c
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("build lexical index: %w", err)
	}

	l.index = idx
	l.dirty = false
	slog.Debug("lexical index rebuilt", "chunks", len(chunks))
	return nil
}

// Search returns up to n chunks matching the query, scored by BM25 and
// min-max normalized against the batch maximum so scores lie in [0,1].
// Normalization is relative to this query's candidates only, not the
// corpus, and downstream fusion weighting assumes exactly that.
func (l *LexicalIndex) Search(ctx context.Context, query string, n int) ([]note.SearchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.index == nil || strings.TrimSpace(query) == "" || n <= 0 {
		return []note.SearchResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = n

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	if len(result.Hits) == 0 {
		return []note.SearchResult{}, nil
	}

	maxScore := result.Hits[0].Score
	for _, hit := range result.Hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	results := make([]note.SearchResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if hit.Score <= 0 {
			continue
		}
		chunk, ok := l.chunks[hit.ID]
		if !ok {
			continue
		}
		score := hit.Score
		if maxScore > 0 {
			score = hit.Score / maxScore
		}
		results = append(results, note.SearchResult{
			Chunk:  chunk,
			Score:  score,
			Source: note.SourceBM25,
		})
	}
	return results, nil
}

// Count returns the number of indexed chunks.
func (l *LexicalIndex) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chunks)
}

// Close releases the underlying index.
func (l *LexicalIndex) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index != nil {
		err := l.index.Close()
		l.index = nil
		return err
	}
	return nil
}
