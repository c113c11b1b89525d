// Package hybrid combines a keyword memory.Store with a semantic vector.Index.
//
// Writes land in the store first and are mirrored into the index; index
// failures are logged and never fail the write. Free-text queries merge the
// keyword ranking with vector hits that the keyword pass missed.
package hybrid

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// Store implements memory.Store over a keyword store and a vector index.
type Store struct {
	store  memory.Store
	index  vector.Index
	logger *slog.Logger
}

// Config configures a hybrid Store.
type Config struct {
	Store  memory.Store
	Index  vector.Index
	Logger *slog.Logger
}

// New builds a hybrid store. A nil Index falls back to vector.NopIndex.
func New(c Config) (*Store, error) {
	if c.Store == nil {
		return nil, errors.New("keyword store is required")
	}
	if c.Index == nil {
		c.Index = vector.NopIndex{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		store:  c.Store,
		index:  c.Index,
		logger: c.Logger,
	}, nil
}

// Add writes entry to the store and indexes it.
func (s *Store) Add(ctx context.Context, entry *memory.Entry) (*memory.Entry, error) {
	stored, err := s.store.Add(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.upsertIndex(ctx, stored)
	return stored, nil
}

// Get reads from the keyword store.
func (s *Store) Get(ctx context.Context, id string, scope memory.Scope, namespace string) (*memory.Entry, error) {
	return s.store.Get(ctx, id, scope, namespace)
}

// Update replaces entry in the store and re-indexes it.
func (s *Store) Update(ctx context.Context, entry *memory.Entry) (*memory.Entry, error) {
	stored, err := s.store.Update(ctx, entry)
	if err != nil {
		return nil, err
	}

	s.upsertIndex(ctx, stored)
	return stored, nil
}

// Delete removes the entry from the store and the index.
func (s *Store) Delete(ctx context.Context, id string, scope memory.Scope, namespace string) (bool, error) {
	ok, err := s.store.Delete(ctx, id, scope, namespace)
	if err != nil {
		return false, err
	}

	ref := memory.Ref{ID: id, Scope: scope, Namespace: namespace}
	if err := s.index.Delete(ctx, ref); err != nil {
		s.logger.Warn("failed to remove entry from vector index",
			"id", id,
			"scope", scope,
			"namespace", namespace,
			"error", err,
		)
	}

	return ok, nil
}

// List delegates to the keyword store.
func (s *Store) List(ctx context.Context, scope memory.Scope, namespace string, limit int, cursor memory.Cursor, owner string) (*memory.ListResult, error) {
	return s.store.List(ctx, scope, namespace, limit, cursor, owner)
}

// Query answers plain listings from the keyword store. With free text the
// full keyword ranking comes first, followed by vector-only hits that still
// satisfy the layer, owner and tag filters, and the merged sequence is paged
// with the usual offset cursor.
func (s *Store) Query(ctx context.Context, q memory.Query) (*memory.ListResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return s.store.Query(ctx, q)
	}

	keyword := q
	keyword.Cursor = memory.Cursor{}
	ranked, err := memory.CollectQuery(ctx, s.store, keyword)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ranked))
	merged := make([]*memory.Entry, 0, len(ranked))
	for _, e := range ranked {
		seen[e.ID] = struct{}{}
		merged = append(merged, e)
	}

	// One extra hit lets has_more reflect vector results past this page.
	want := q.Cursor.Offset + q.Limit + 1
	if q.Limit <= 0 {
		want = q.Cursor.Offset + len(ranked) + 1
	}

	ids, err := s.index.Query(ctx, q.Scope, q.Namespace, q.Text, want)
	if err != nil {
		s.logger.Warn("vector query failed, using keyword results only",
			"scope", q.Scope,
			"namespace", q.Namespace,
			"error", err,
		)
		ids = nil
	}

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		e, err := s.store.Get(ctx, id, q.Scope, q.Namespace)
		if errors.Is(err, memory.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !q.Matches(e) {
			continue
		}
		merged = append(merged, e)
	}

	return memory.Paginate(merged, q.Cursor, q.Limit), nil
}

// Close closes the index and the store.
func (s *Store) Close() error {
	return errors.Join(s.index.Close(), s.store.Close())
}

func (s *Store) upsertIndex(ctx context.Context, e *memory.Entry) {
	if err := s.index.Upsert(ctx, e); err != nil {
		s.logger.Warn("failed to index entry",
			"id", e.ID,
			"scope", e.Scope,
			"namespace", e.Namespace,
			"error", err,
		)
	}
}

var _ memory.Store = (*Store)(nil)
