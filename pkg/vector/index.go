package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/embeddings"
	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Index is the semantic side of the hybrid store: it maps entries to
// embeddings and answers similarity queries with entry ids.
type Index interface {
	// Upsert indexes the content of entry, replacing any previous document.
	Upsert(ctx context.Context, entry *memory.Entry) error

	// Delete removes the document for ref.
	Delete(ctx context.Context, ref memory.Ref) error

	// Query returns up to limit entry ids from the partition ordered by
	// similarity to text.
	Query(ctx context.Context, scope memory.Scope, namespace, text string, limit int) ([]string, error)

	// Close releases index resources.
	Close() error
}

// DocumentID returns the document key for an entry reference. Promoted copies
// share an entry id across scopes, so the key carries the full reference.
func DocumentID(ref memory.Ref) string {
	return string(ref.Scope) + "/" + ref.Namespace + "/" + ref.ID
}

// NopIndex is an Index that stores nothing and never matches.
type NopIndex struct{}

func (NopIndex) Upsert(context.Context, *memory.Entry) error { return nil }

func (NopIndex) Delete(context.Context, memory.Ref) error { return nil }

func (NopIndex) Query(context.Context, memory.Scope, string, string, int) ([]string, error) {
	return nil, nil
}

func (NopIndex) Close() error { return nil }

// EmbeddingIndex implements Index by embedding entry content and storing it in
// a VectorDriver.
type EmbeddingIndex struct {
	driver   VectorDriver
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// EmbeddingIndexConfig configures an EmbeddingIndex.
type EmbeddingIndexConfig struct {
	Driver   VectorDriver
	Embedder embeddings.Embedder
	Logger   *slog.Logger
}

// NewEmbeddingIndex composes an embedder with a vector driver.
func NewEmbeddingIndex(c EmbeddingIndexConfig) (*EmbeddingIndex, error) {
	if c.Driver == nil {
		return nil, errors.New("vector driver is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &EmbeddingIndex{
		driver:   c.Driver,
		embedder: c.Embedder,
		logger:   c.Logger,
	}, nil
}

// Upsert embeds the entry content and stores it.
func (x *EmbeddingIndex) Upsert(ctx context.Context, entry *memory.Entry) error {
	if strings.TrimSpace(entry.Content) == "" {
		return nil
	}

	emb, err := x.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return fmt.Errorf("embedding entry %s: %w", entry.ID, err)
	}

	return x.driver.Add(ctx, []Document{{
		ID:        DocumentID(entry.Ref()),
		EntryID:   entry.ID,
		Scope:     string(entry.Scope),
		Namespace: entry.Namespace,
		Embedding: emb,
	}})
}

// Delete removes the document for ref.
func (x *EmbeddingIndex) Delete(ctx context.Context, ref memory.Ref) error {
	return x.driver.Delete(ctx, []string{DocumentID(ref)})
}

// Query embeds text and returns the entry ids of the nearest documents in the
// partition.
func (x *EmbeddingIndex) Query(ctx context.Context, scope memory.Scope, namespace, text string, limit int) ([]string, error) {
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return nil, nil
	}

	emb, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := x.driver.Query(ctx, emb, limit, Filter{
		Scope:     string(scope),
		Namespace: namespace,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.EntryID)
	}

	x.logger.Debug("vector query",
		"scope", scope,
		"namespace", namespace,
		"results", len(ids),
	)

	return ids, nil
}

// Close closes the driver and the embedder.
func (x *EmbeddingIndex) Close() error {
	return errors.Join(x.driver.Close(), x.embedder.Close())
}

var (
	_ Index = NopIndex{}
	_ Index = (*EmbeddingIndex)(nil)
)
