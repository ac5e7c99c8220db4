package embedding

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder wraps an Embedder with a process-scoped cache keyed by a
// digest of the input text, avoiding recomputation for repeated text.
//
// The cache admits entries asynchronously and may drop some under pressure;
// a miss only costs a redundant provider call, never a wrong vector.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with a cache sized far beyond any expected
// working set. Eviction tuning is deliberately left for later.
func NewCachedEmbedder(inner Embedder) (*CachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1 << 20,
		MaxCost:     512 << 20, // bytes of vector data
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// key digests the model version together with the text, so vectors from
// different models never collide.
func (c *CachedEmbedder) key(text string) uint64 {
	h := xxhash.New()
	h.WriteString(c.inner.ModelVersion())
	h.Write([]byte{0})
	h.WriteString(text)
	return h.Sum64()
}

// Embed returns the cached vector for text, computing and caching it on a
// miss. Blank text bypasses the cache; the inner embedder returns the zero
// vector without a provider call.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if strings.TrimSpace(text) == "" {
		return c.inner.Embed(ctx, text)
	}
	if v, ok := c.cache.Get(c.key(text)); ok {
		return v.(Vector), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.key(text), vec, int64(4*len(vec)))
	return vec, nil
}

// EmbedBatch fills cached slots first and sends only the misses upstream in
// one batch, preserving index alignment with texts.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = make(Vector, c.inner.Dims())
			continue
		}
		if v, ok := c.cache.Get(c.key(text)); ok {
			out[i] = v.(Vector)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		vecs, err := c.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range vecs {
			out[missIdx[j]] = vec
			c.cache.Set(c.key(missTexts[j]), vec, int64(4*len(vec)))
		}
	}
	return out, nil
}

func (c *CachedEmbedder) Dims() int { return c.inner.Dims() }

func (c *CachedEmbedder) ModelVersion() string { return c.inner.ModelVersion() }
