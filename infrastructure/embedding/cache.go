// Package embedding implements the content-addressed embedding cache: a
// thread-safe LRU (github.com/hashicorp/golang-lru/v2) in front of a
// batched embed_batch collaborator, with optional on-disk persistence.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codemem/engine/domain/search"
	"github.com/codemem/engine/errs"
)

// cacheKey is (sha256(text), model). Content equality is the only notion
// of identity; whitespace and case are significant.
type cacheKey struct {
	hash  string
	model string
}

func keyFor(text, model string) cacheKey {
	sum := sha256.Sum256([]byte(text))
	return cacheKey{hash: hex.EncodeToString(sum[:]), model: model}
}

// Persister is the optional on-disk backing store for cache entries
// (append-on-write; not required for correctness).
type Persister interface {
	Load(ctx context.Context) (map[string][]float32, error)
	Save(ctx context.Context, hash, model string, vector []float32) error
}

// Cache is a thread-safe, content-addressed LRU in front of an
// EmbedBatchFunc.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[cacheKey, []float32]
	model     string
	dimension int
	embedFn   search.EmbedBatchFunc
	persist   Persister
}

// New constructs a Cache with the given capacity, model identifier,
// dimension, and underlying batched embed function. If persist is
// non-nil, its prior contents are loaded eagerly.
func New(ctx context.Context, capacity int, model string, dimension int, embedFn search.EmbedBatchFunc, persist Persister) (*Cache, error) {
	l, err := lru.New[cacheKey, []float32](capacity)
	if err != nil {
		return nil, errs.Internal("failed to construct embedding LRU: " + err.Error())
	}
	c := &Cache{lru: l, model: model, dimension: dimension, embedFn: embedFn, persist: persist}
	if persist != nil {
		entries, err := persist.Load(ctx)
		if err != nil {
			return nil, errs.StorageError("embedding_cache.load", err)
		}
		for hash, vec := range entries {
			l.Add(cacheKey{hash: hash, model: model}, vec)
		}
	}
	return c, nil
}

func (c *Cache) Dimension() int { return c.dimension }
func (c *Cache) Model() string { return c.model }

// Embed returns one vector per text, order preserved. Cache hits bypass
// the underlying model; on partial hit, only the missed texts are
// batched.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, t := range texts {
		k := keyFor(t, c.model)
		if v, ok := c.lru.Get(k); ok {
			results[i] = v
		} else {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, t)
		}
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return results, nil
	}

	vectors, err := c.embedFn(ctx, missTexts)
	if err != nil {
		return nil, errs.EmbeddingFailed(missIdx, err)
	}
	if len(vectors) != len(missTexts) {
		return nil, errs.EmbeddingFailed(missIdx, errs.Internal("embed_batch returned mismatched vector count"))
	}

	c.mu.Lock()
	for j, idx := range missIdx {
		results[idx] = vectors[j]
		k := keyFor(missTexts[j], c.model)
		c.lru.Add(k, vectors[j])
		if c.persist != nil {
			_ = c.persist.Save(ctx, k.hash, c.model, vectors[j])
		}
	}
	c.mu.Unlock()

	return results, nil
}

// Invalidate drops a cached entry ahead of an update that changes content.
func (c *Cache) Invalidate(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(keyFor(text, c.model))
}

// Len reports the current number of cached entries, for metrics/tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
