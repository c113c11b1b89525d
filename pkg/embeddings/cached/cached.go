// Package cached wraps an embeddings.Embedder with an in-process ristretto
// cache so repeated content and queries are embedded once.
package cached

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
)

// DefaultMaxEntries is the approximate number of embeddings kept when no size
// is configured.
const DefaultMaxEntries = 4096

// Embedder caches the embeddings produced by an inner Embedder.
type Embedder struct {
	inner embeddings.Embedder
	cache *ristretto.Cache
}

// NewEmbedder wraps inner with a cache holding roughly maxEntries embeddings.
func NewEmbedder(inner embeddings.Embedder, maxEntries int) (*Embedder, error) {
	if inner == nil {
		return nil, errors.New("inner embedder is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached embedding for text or computes and caches it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return append([]float32(nil), emb...), nil
		}
	}

	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, append([]float32(nil), emb...), 1)
	return emb, nil
}

// Wait blocks until pending cache writes are visible.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close closes the cache and the inner embedder.
func (e *Embedder) Close() error {
	e.cache.Close()
	return e.inner.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
