package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default in-memory LRU capacity. At 768
// dimensions that is roughly 3MB.
const DefaultCacheSize = 1000

// PersistentCache is the durable second cache tier, keyed by model and
// content hash. Satisfied by store.MetadataStore.
type PersistentCache interface {
	GetEmbedding(ctx context.Context, model, contentHash string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, model, contentHash string, vector []float32) error
}

// CachedEmbedder layers an in-memory LRU and an optional persistent cache
// over an Embedder. Re-indexing an unchanged vault never re-embeds.
type CachedEmbedder struct {
	inner      Embedder
	cache      *lru.Cache[string, []float32]
	persistent PersistentCache // may be nil
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with caching. persistent may be nil for
// memory-only caching.
func NewCachedEmbedder(inner Embedder, cacheSize int, persistent PersistentCache) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache, persistent: persistent}
}

// cacheKey hashes the text; the model name keys the persistent tier
// separately, so it is mixed in here for the shared LRU.
func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

// Embed returns a cached vector when available, otherwise computes and
// caches it in both tiers.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch checks both cache tiers per text and embeds only the misses.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIndices []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		if c.persistent != nil {
			vec, ok, err := c.persistent.GetEmbedding(ctx, c.inner.ModelName(), key)
			if err != nil {
				slog.Warn("persistent embedding cache read failed", "error", err)
			} else if ok {
				c.cache.Add(key, vec)
				results[i] = vec
				continue
			}
		}
		missIndices = append(missIndices, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIndices {
		vec := computed[j]
		results[idx] = vec
		key := c.cacheKey(texts[idx])
		c.cache.Add(key, vec)
		if c.persistent != nil {
			if err := c.persistent.PutEmbedding(ctx, c.inner.ModelName(), key, vec); err != nil {
				slog.Warn("persistent embedding cache write failed", "error", err)
			}
		}
	}
	return results, nil
}

func (c *CachedEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *CachedEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *CachedEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *CachedEmbedder) Close() error                       { return c.inner.Close() }
