package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/note"
	"github.com/mindvault/mindvault/internal/store"
)

// fakeVectors returns a canned result list and records search calls.
type fakeVectors struct {
	mu      sync.Mutex
	results []note.SearchResult
	err     error
	calls   int
	lastK   int
}

var _ store.VectorStore = (*fakeVectors)(nil)

func (f *fakeVectors) Search(_ context.Context, _ []float32, k int, filter store.SearchFilter) ([]note.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	out := make([]note.SearchResult, 0, len(f.results))
	for _, r := range f.results {
		if filter.IsZero() || filter.Matches(r.Chunk) {
			out = append(out, r)
		}
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (f *fakeVectors) Upsert(context.Context, []note.Chunk, [][]float32) error { return nil }
func (f *fakeVectors) DeleteByDocument(context.Context, string) error          { return nil }
func (f *fakeVectors) Clear(context.Context) error                             { return nil }
func (f *fakeVectors) Count() int                                              { return len(f.results) }
func (f *fakeVectors) Save(string) error                                       { return nil }
func (f *fakeVectors) Load(string) error                                       { return nil }
func (f *fakeVectors) Close() error                                            { return nil }

func (f *fakeVectors) searchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedEmbedder struct {
	err   error
	calls int
}

func (f *fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0, 0}, nil
}

func vecResult(docID string, index int, score float64, tags ...string) note.SearchResult {
	c := lexChunk(docID, index, "vector chunk "+docID)
	c.Tags = tags
	return note.SearchResult{Chunk: &c, Score: score, Source: note.SourceVector}
}

func newTestRetriever(t *testing.T, vectors *fakeVectors, corpus []note.Chunk) *Retriever {
	t.Helper()
	lexical := NewLexicalIndex()
	t.Cleanup(func() { _ = lexical.Close() })
	return NewRetriever(&fixedEmbedder{}, vectors, lexical, sliceCorpus(corpus), DefaultRetrieverConfig())
}

func TestRetrieveFusesBothBranches(t *testing.T) {
	vectors := &fakeVectors{results: []note.SearchResult{
		vecResult("docA", 0, 0.95),
		vecResult("docB", 0, 0.90),
	}}
	corpus := []note.Chunk{
		lexChunk("docB", 0, "hybrid retrieval fuses rankings"),
		lexChunk("docC", 0, "hybrid retrieval notes from standup"),
	}
	r := newTestRetriever(t, vectors, corpus)

	results, err := r.Retrieve(context.Background(), "hybrid retrieval", 5, store.SearchFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 5)

	ids := make(map[string]bool)
	for i, res := range results {
		assert.Equal(t, note.SourceHybrid, res.Source)
		assert.False(t, ids[res.Chunk.ID], "duplicate %s", res.Chunk.ID)
		ids[res.Chunk.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, res.Score)
		}
	}
	// docB appears in both branches and must lead.
	assert.Equal(t, "docB:0", results[0].Chunk.ID)
}

func TestRetrieveEmptyQueryShortCircuits(t *testing.T) {
	vectors := &fakeVectors{}
	r := newTestRetriever(t, vectors, testCorpus())

	for _, q := range []string{"", "   "} {
		results, err := r.Retrieve(context.Background(), q, 5, store.SearchFilter{})
		require.NoError(t, err)
		assert.Empty(t, results)
	}
	assert.Equal(t, 0, vectors.searchCalls())
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	r := newTestRetriever(t, &fakeVectors{}, nil)

	results, err := r.Retrieve(context.Background(), "anything", 5, store.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveOverFetchesTwiceK(t *testing.T) {
	vectors := &fakeVectors{results: []note.SearchResult{vecResult("docA", 0, 0.9)}}
	r := newTestRetriever(t, vectors, testCorpus())

	_, err := r.Retrieve(context.Background(), "notes", 7, store.SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, 14, vectors.lastK)
}

func TestRetrieveAppliesFilterToLexicalBranch(t *testing.T) {
	tagged := lexChunk("docT", 0, "project retrieval planning")
	tagged.Tags = []string{"projects"}
	untagged := lexChunk("docU", 0, "project retrieval scratchpad")

	r := newTestRetriever(t, &fakeVectors{}, []note.Chunk{tagged, untagged})

	results, err := r.Retrieve(context.Background(), "project retrieval", 5,
		store.SearchFilter{Tags: []string{"projects"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docT:0", results[0].Chunk.ID)
}

func TestRetrieveDirtyRebuildBeforeSearch(t *testing.T) {
	lexical := NewLexicalIndex()
	t.Cleanup(func() { _ = lexical.Close() })
	require.NoError(t, lexical.Rebuild(nil))

	corpus := sliceCorpus{lexChunk("docN", 0, "freshly synced retrieval note")}
	r := NewRetriever(&fixedEmbedder{}, &fakeVectors{}, lexical, corpus, DefaultRetrieverConfig())

	// Before the mutation is signalled the empty build serves the query.
	results, err := r.Retrieve(context.Background(), "retrieval", 5, store.SearchFilter{})
	require.NoError(t, err)
	assert.Empty(t, results)

	r.MarkDirty()
	results, err = r.Retrieve(context.Background(), "retrieval", 5, store.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docN:0", results[0].Chunk.ID)
}

func TestRetrievePropagatesBranchErrors(t *testing.T) {
	wantErr := errors.New("hnsw exploded")
	r := newTestRetriever(t, &fakeVectors{err: wantErr}, testCorpus())

	_, err := r.Retrieve(context.Background(), "anything", 5, store.SearchFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestRetrieveEmbedderFailure(t *testing.T) {
	lexical := NewLexicalIndex()
	t.Cleanup(func() { _ = lexical.Close() })
	embedErr := errors.New("ollama down")
	r := NewRetriever(&fixedEmbedder{err: embedErr}, &fakeVectors{}, lexical, sliceCorpus(testCorpus()), DefaultRetrieverConfig())

	_, err := r.Retrieve(context.Background(), "anything", 5, store.SearchFilter{})
	assert.ErrorIs(t, err, embedErr)
}
