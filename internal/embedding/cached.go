package embedding

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of vectors kept by NewCached when size <= 0.
const DefaultCacheSize = 512

// Cached remembers recent embeddings so the same text is embedded once. A
// run embeds the document for retrieval and again when it is kept as an
// example; the second lookup is served from the cache.
type Cached struct {
	next  Provider
	cache *lru.Cache[[sha256.Size]byte, []float32]
}

func NewCached(next Provider, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{next: next, cache: cache}, nil
}

// Embed returns a cached vector or asks the wrapped provider. Failures are
// not cached. Callers must not modify the returned slice.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := sha256.Sum256([]byte(text))
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

func (c *Cached) Len() int {
	return c.cache.Len()
}
