// Package vector provides interfaces and implementations for vector storage
// and semantic indexing of memory entries.
package vector

import "context"

// Document represents a stored embedding for one memory entry.
type Document struct {
	// ID is the document key, derived from the entry reference with DocumentID.
	ID string

	// EntryID is the id of the memory entry this document indexes.
	EntryID string

	// Scope and Namespace locate the entry's partition. Drivers store them as
	// metadata so queries can be filtered to one partition.
	Scope     string
	Namespace string

	// Embedding is the vector representation of the entry content.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score represents the similarity score (higher = more similar).
	Score float32
}

// Filter restricts a query to one (scope, namespace) partition. Empty fields
// match everything.
type Filter struct {
	Scope     string
	Namespace string
}

// VectorDriver handles storage and retrieval of vector embeddings.
type VectorDriver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK most similar documents to the given embedding
	// within the filtered partition.
	Query(ctx context.Context, embedding []float32, topK int, filter Filter) ([]QueryResult, error)

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
