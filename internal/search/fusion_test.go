package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindvault/mindvault/internal/note"
)

func result(id string, score float64, source note.ResultSource) note.SearchResult {
	return note.SearchResult{
		Chunk:  &note.Chunk{ID: id, DocumentID: id[:4], Content: "content of " + id},
		Score:  score,
		Source: source,
	}
}

func TestFuseRRFExactScores(t *testing.T) {
	// Three results per branch with one shared chunk. With weights 0.7/0.3
	// and k=60, every fused score is w/(60+rank+1) summed over the lists
	// the chunk appears in.
	vector := []note.SearchResult{
		result("docA:0", 0.95, note.SourceVector),
		result("docB:1", 0.90, note.SourceVector),
		result("docC:2", 0.85, note.SourceVector),
	}
	lexical := []note.SearchResult{
		result("docD:0", 1.0, note.SourceBM25),
		result("docB:1", 0.8, note.SourceBM25),
		result("docE:3", 0.5, note.SourceBM25),
	}

	fused := fuseRRF(vector, lexical, 0.7, 0.3, 60, 10)
	require.Len(t, fused, 5)

	scores := make(map[string]float64, len(fused))
	for _, r := range fused {
		scores[r.Chunk.ID] = r.Score
		assert.Equal(t, note.SourceHybrid, r.Source)
	}

	const eps = 1e-12
	assert.InDelta(t, 0.7/61, scores["docA:0"], eps)
	assert.InDelta(t, 0.7/62+0.3/62, scores["docB:1"], eps)
	assert.InDelta(t, 0.7/63, scores["docC:2"], eps)
	assert.InDelta(t, 0.3/61, scores["docD:0"], eps)
	assert.InDelta(t, 0.3/63, scores["docE:3"], eps)

	// The chunk in both lists outranks everything else.
	assert.Equal(t, "docB:1", fused[0].Chunk.ID)
}

func TestFuseRRFDescendingAndUnique(t *testing.T) {
	vector := []note.SearchResult{
		result("docA:0", 0.9, note.SourceVector),
		result("docB:0", 0.8, note.SourceVector),
		result("docC:0", 0.7, note.SourceVector),
		result("docD:0", 0.6, note.SourceVector),
	}
	lexical := []note.SearchResult{
		result("docC:0", 1.0, note.SourceBM25),
		result("docE:0", 0.4, note.SourceBM25),
	}

	fused := fuseRRF(vector, lexical, 0.7, 0.3, 60, 3)
	require.Len(t, fused, 3)

	seen := make(map[string]bool)
	for i, r := range fused {
		assert.False(t, seen[r.Chunk.ID], "duplicate chunk %s", r.Chunk.ID)
		seen[r.Chunk.ID] = true
		if i > 0 {
			assert.GreaterOrEqual(t, fused[i-1].Score, r.Score)
		}
	}
}

func TestFuseRRFTiesKeepVectorOrder(t *testing.T) {
	// Equal weights and mirrored ranks produce exact ties; the vector-list
	// entry seen first must stay first.
	vector := []note.SearchResult{
		result("docA:0", 0.9, note.SourceVector),
		result("docB:0", 0.8, note.SourceVector),
	}
	lexical := []note.SearchResult{
		result("docC:0", 1.0, note.SourceBM25),
		result("docD:0", 0.9, note.SourceBM25),
	}

	fused := fuseRRF(vector, lexical, 0.5, 0.5, 60, 10)
	require.Len(t, fused, 4)
	assert.True(t, math.Abs(fused[0].Score-fused[1].Score) < 1e-12)
	assert.Equal(t, "docA:0", fused[0].Chunk.ID)
	assert.Equal(t, "docC:0", fused[1].Chunk.ID)
}

func TestFuseRRFEmptyInputs(t *testing.T) {
	assert.Empty(t, fuseRRF(nil, nil, 0.7, 0.3, 60, 5))

	only := fuseRRF([]note.SearchResult{result("docA:0", 0.9, note.SourceVector)}, nil, 0.7, 0.3, 60, 5)
	require.Len(t, only, 1)
	assert.InDelta(t, 0.7/61, only[0].Score, 1e-12)
}

func TestFuseRRFZeroK(t *testing.T) {
	assert.Empty(t, fuseRRF([]note.SearchResult{result("docA:0", 0.9, note.SourceVector)}, nil, 0.7, 0.3, 60, 0))
}
