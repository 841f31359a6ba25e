package search

import (
	"sort"

	"github.com/mindvault/mindvault/internal/note"
)

// DefaultRRFConstant is the standard RRF smoothing parameter, empirically
// validated across domains.
const DefaultRRFConstant = 60

// fusedEntry accumulates RRF contributions for one chunk.
type fusedEntry struct {
	chunk *note.Chunk
	score float64
}

// fuseRRF merges a vector result list and a lexical result list with
// weighted reciprocal rank fusion. Each list contributes
// weight/(rrfK + rank + 1) per chunk, rank zero-based within its own list;
// a chunk absent from a list contributes nothing for that list. Fused
// scores are rank-derived and left unnormalized, so they are
// not comparable to the per-branch scores that produced them.
//
// Ordering is deterministic: equal scores keep first-seen order, with the
// vector list consumed before the lexical list.
func fuseRRF(vector, lexical []note.SearchResult, vectorWeight, bm25Weight float64, rrfK, k int) []note.SearchResult {
	if k <= 0 {
		return []note.SearchResult{}
	}

	entries := make([]*fusedEntry, 0, len(vector)+len(lexical))
	byID := make(map[string]*fusedEntry, len(vector)+len(lexical))

	accumulate := func(results []note.SearchResult, weight float64) {
		for rank, r := range results {
			if r.Chunk == nil {
				continue
			}
			contribution := weight / float64(rrfK+rank+1)
			if e, ok := byID[r.Chunk.ID]; ok {
				e.score += contribution
				continue
			}
			e := &fusedEntry{chunk: r.Chunk, score: contribution}
			entries = append(entries, e)
			byID[r.Chunk.ID] = e
		}
	}
	accumulate(vector, vectorWeight)
	accumulate(lexical, bm25Weight)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	if len(entries) > k {
		entries = entries[:k]
	}
	fused := make([]note.SearchResult, len(entries))
	for i, e := range entries {
		fused[i] = note.SearchResult{
			Chunk:  e.chunk,
			Score:  e.score,
			Source: note.SourceHybrid,
		}
	}
	return fused
}
