package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/note"
)

func lexChunk(docID string, index int, content string) note.Chunk {
	return note.Chunk{
		ID:         note.ChunkID(docID, index),
		DocumentID: docID,
		Index:      index,
		Kind:       note.KindParagraph,
		Content:    content,
	}
}

func testCorpus() []note.Chunk {
	return []note.Chunk{
		lexChunk("doc1", 0, "BM25 ranking rewards rare query terms in short documents"),
		lexChunk("doc1", 1, "Vector search captures semantic similarity between notes"),
		lexChunk("doc2", 0, "Weekly review: groceries, dentist appointment, tax filing"),
		lexChunk("doc3", 0, "The hybrid retriever fuses BM25 and vector rankings"),
	}
}

func TestLexicalSearchRanksMatches(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild(testCorpus()))

	results, err := idx.Search(context.Background(), "BM25 ranking", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
		assert.Equal(t, note.SourceBM25, r.Source)
		assert.Greater(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
	assert.Contains(t, ids, "doc1:0")
	assert.Contains(t, ids, "doc3:0")
	assert.NotContains(t, ids, "doc2:0")

	// Batch-max normalization puts the best hit at exactly 1.0.
	assert.Equal(t, 1.0, results[0].Score)
}

func TestLexicalSearchCaseFolds(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild(testCorpus()))

	lower, err := idx.Search(context.Background(), "bm25", 10)
	require.NoError(t, err)
	upper, err := idx.Search(context.Background(), "BM25", 10)
	require.NoError(t, err)

	require.NotEmpty(t, lower)
	require.Len(t, upper, len(lower))
	for i := range lower {
		assert.Equal(t, lower[i].Chunk.ID, upper[i].Chunk.ID)
	}
}

func TestLexicalSearchEmptyCorpus(t *testing.T) {
	idx := NewLexicalIndex()
	require.NoError(t, idx.Rebuild(nil))

	results, err := idx.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, idx.Dirty())
}

func TestLexicalSearchEmptyQuery(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild(testCorpus()))

	for _, q := range []string{"", "   ", "\t\n"} {
		results, err := idx.Search(context.Background(), q, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestLexicalDirtyLifecycle(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })
	assert.True(t, idx.Dirty(), "new index starts dirty")

	require.NoError(t, idx.Rebuild(testCorpus()))
	assert.False(t, idx.Dirty())

	idx.MarkDirty()
	assert.True(t, idx.Dirty())
}

type sliceCorpus []note.Chunk

func (s sliceCorpus) AllChunks(context.Context) ([]note.Chunk, error) {
	return s, nil
}

func TestLexicalEnsureFreshPullsFromSource(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.EnsureFresh(context.Background(), sliceCorpus(testCorpus()), nil))
	assert.False(t, idx.Dirty())
	assert.Equal(t, 4, idx.Count())

	// Fresh index skips the source entirely.
	require.NoError(t, idx.EnsureFresh(context.Background(), nil, nil))
	assert.Equal(t, 4, idx.Count())
}

func TestLexicalRebuildIsDeterministic(t *testing.T) {
	corpus := make([]note.Chunk, 0, 20)
	for i := 0; i < 20; i++ {
		corpus = append(corpus, lexChunk(fmt.Sprintf("doc%d", i), 0,
			fmt.Sprintf("note number %d mentions retrieval and ranking", i)))
	}

	run := func() []string {
		idx := NewLexicalIndex()
		defer func() { _ = idx.Close() }()
		require.NoError(t, idx.Rebuild(corpus))
		results, err := idx.Search(context.Background(), "retrieval ranking", 10)
		require.NoError(t, err)
		ids := make([]string, len(results))
		for i, r := range results {
			ids[i] = r.Chunk.ID
		}
		return ids
	}

	first := run()
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, run())
	}
}

func TestLexicalTokenizerSplitsOnPunctuation(t *testing.T) {
	idx := NewLexicalIndex()
	t.Cleanup(func() { _ = idx.Close() })
	require.NoError(t, idx.Rebuild([]note.Chunk{
		lexChunk("doc1", 0, "call sync_vault() before shutdown"),
	}))

	// Underscores are kept, so the identifier is one token.
	results, err := idx.Search(context.Background(), "sync_vault", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1:0", results[0].Chunk.ID)
}
