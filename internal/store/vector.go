package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/mindvault/mindvault/internal/note"
)

// HNSWStore implements VectorStore on a pure Go HNSW graph. Chunk payloads
// ride along with the ID mappings so search results carry full chunks
// without a second lookup.
//
// Deletion is lazy: removed chunks are orphaned in the graph and filtered
// out of results. Deleting graph nodes directly can corrupt small graphs.
type HNSWStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	dimensions int
	idMap      map[string]uint64
	keyMap     map[uint64]string
	chunks     map[string]*note.Chunk
	nextKey    uint64
	closed     bool
}

// hnswMetadata is the gob-persisted sidecar: mappings, payloads, config.
type hnswMetadata struct {
	IDMap      map[string]uint64
	Chunks     map[string]*note.Chunk
	NextKey    uint64
	Dimensions int
}

var _ VectorStore = (*HNSWStore)(nil)

// NewHNSWStore creates a vector store for embeddings of the given
// dimensionality. dimensions may be 0 to adopt the first upserted vector's
// length.
func NewHNSWStore(dimensions int) *HNSWStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &HNSWStore{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		chunks:     make(map[string]*note.Chunk),
	}
}

// Upsert inserts or replaces chunk vectors.
func (s *HNSWStore) Upsert(ctx context.Context, chunks []note.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if s.dimensions == 0 && len(vectors[0]) > 0 {
		s.dimensions = len(vectors[0])
	}
	for _, v := range vectors {
		if len(v) != s.dimensions {
			return ErrDimensionMismatch{Expected: s.dimensions, Got: len(v)}
		}
	}

	for i := range chunks {
		c := chunks[i]
		if existingKey, exists := s.idMap[c.ID]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, c.ID)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[c.ID] = key
		s.keyMap[key] = c.ID
		s.chunks[c.ID] = &c
	}
	return nil
}

// Search returns up to k nearest chunks passing the filter, scored in
// [0,1], most similar first.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int, filter SearchFilter) ([]note.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if k <= 0 || s.graph.Len() == 0 {
		return []note.SearchResult{}, nil
	}
	if len(query) != s.dimensions {
		return nil, ErrDimensionMismatch{Expected: s.dimensions, Got: len(query)}
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeInPlace(normalized)

	// Over-fetch to survive orphans and filter misses.
	fetch := k * 3
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}
	nodes := s.graph.Search(normalized, fetch)

	results := make([]note.SearchResult, 0, k)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		chunk := s.chunks[id]
		if chunk == nil || !filter.Matches(chunk) {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, note.SearchResult{
			Chunk: chunk,
			// Cosine distance spans [0,2]; map to a [0,1] similarity.
			Score:  float64(1.0 - distance/2.0),
			Source: note.SourceVector,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// DeleteByDocument lazily removes every chunk belonging to a document.
func (s *HNSWStore) DeleteByDocument(ctx context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for id, chunk := range s.chunks {
		if chunk.DocumentID != docID {
			continue
		}
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
		delete(s.chunks, id)
	}
	return nil
}

// Clear drops all vectors and payloads.
func (s *HNSWStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	s.graph = graph
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.chunks = make(map[string]*note.Chunk)
	s.nextKey = 0
	return nil
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Dimensions returns the configured vector dimensionality.
func (s *HNSWStore) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Save persists the graph and sidecar metadata via temp file + rename.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := hnswMetadata{
		IDMap:      s.idMap,
		Chunks:     s.chunks,
		NextKey:    s.nextKey,
		Dimensions: s.dimensions,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores the graph and sidecar metadata from disk.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	var meta hnswMetadata
	decodeErr := gob.NewDecoder(metaFile).Decode(&meta)
	_ = metaFile.Close()
	if decodeErr != nil {
		return fmt.Errorf("decode metadata: %w", decodeErr)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	// Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}

	s.idMap = meta.IDMap
	s.chunks = meta.Chunks
	s.nextKey = meta.NextKey
	s.dimensions = meta.Dimensions
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases the graph. Safe to call multiple times.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
