// Package chromem provides an embedded vector driver backed by chromem-go.
package chromem

import (
	"context"
	"fmt"
	"log/slog"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// DefaultCollection is the collection name used when none is configured.
const DefaultCollection = "mnemo_memory"

const (
	metaEntryID   = "entry_id"
	metaScope     = "scope"
	metaNamespace = "namespace"
)

// Driver implements vector.VectorDriver using an in-process chromem-go DB.
type Driver struct {
	db         *chromemgo.DB
	collection *chromemgo.Collection
	logger     *slog.Logger
}

// Config holds configuration for the chromem driver.
type Config struct {
	// Path persists the DB to a directory when set; otherwise the DB lives in
	// memory only.
	Path string

	// Collection is the collection name. Defaults to DefaultCollection.
	Collection string
}

// NewDriver opens (or creates) the chromem DB and its collection.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	name := c.Collection
	if name == "" {
		name = DefaultCollection
	}

	db := chromemgo.NewDB()
	if c.Path != "" {
		var err error
		db, err = chromemgo.NewPersistentDB(c.Path, false)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db: %w", err)
		}
	}

	// Embeddings are always supplied by the caller, so no embedding func is
	// configured on the collection.
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	logger.Info("chromem vector driver initialized",
		"collection", name,
		"path", c.Path,
		"documents", col.Count(),
	)

	return &Driver{
		db:         db,
		collection: col,
		logger:     logger,
	}, nil
}

// Add stores documents with their embeddings, replacing documents with the
// same ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}

		err := d.collection.AddDocument(ctx, chromemgo.Document{
			ID:        doc.ID,
			Content:   doc.EntryID,
			Embedding: doc.Embedding,
			Metadata: map[string]string{
				metaEntryID:   doc.EntryID,
				metaScope:     doc.Scope,
				metaNamespace: doc.Namespace,
			},
		})
		if err != nil {
			return fmt.Errorf("adding document %s: %w", doc.ID, err)
		}
	}

	d.logger.Debug("added documents to chromem", "count", len(docs))
	return nil
}

// Query finds the topK most similar documents within the filter.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	// chromem-go requires nResults <= collection size.
	count := d.collection.Count()
	if count == 0 {
		return nil, nil
	}
	topK = min(topK, count)

	where := map[string]string{}
	if filter.Scope != "" {
		where[metaScope] = filter.Scope
	}
	if filter.Namespace != "" {
		where[metaNamespace] = filter.Namespace
	}

	results, err := d.collection.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}

	out := make([]vector.QueryResult, 0, len(results))
	for _, r := range results {
		out = append(out, vector.QueryResult{
			Document: toDocument(r.ID, r.Metadata, r.Embedding),
			Score:    r.Similarity,
		})
	}

	return out, nil
}

// Get retrieves documents by their IDs.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	docs := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := d.collection.GetByID(ctx, id)
		if err != nil {
			// GetByID only fails for empty or unknown ids.
			continue
		}
		docs = append(docs, toDocument(doc.ID, doc.Metadata, doc.Embedding))
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	return nil
}

// Close is a no-op; persistent DBs write through on every add.
func (d *Driver) Close() error {
	return nil
}

func toDocument(id string, meta map[string]string, emb []float32) vector.Document {
	return vector.Document{
		ID:        id,
		EntryID:   meta[metaEntryID],
		Scope:     meta[metaScope],
		Namespace: meta[metaNamespace],
		Embedding: emb,
	}
}

var _ vector.VectorDriver = (*Driver)(nil)
