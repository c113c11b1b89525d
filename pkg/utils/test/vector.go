package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/vector"
)

// MockVectorDriver is a test vector driver. Query ignores the embedding and
// returns the configured Results that pass the filter, in order.
type MockVectorDriver struct {
	mu sync.Mutex

	Documents map[string]vector.Document
	Results   []vector.QueryResult

	// Deleted accumulates ids passed to Delete.
	Deleted []string

	// FailAdd and FailQuery force errors from Add and Query.
	FailAdd   bool
	FailQuery bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make(map[string]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailAdd {
		return errors.New("mock vector add failure")
	}
	for _, d := range docs {
		m.Documents[d.ID] = d
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int, filter vector.Filter) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailQuery {
		return nil, errors.New("mock vector query failure")
	}

	var out []vector.QueryResult
	for _, r := range m.Results {
		if filter.Scope != "" && r.Scope != filter.Scope {
			continue
		}
		if filter.Namespace != "" && r.Namespace != filter.Namespace {
			continue
		}
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []vector.Document
	for _, id := range ids {
		if d, ok := m.Documents[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.Documents, id)
	}
	m.Deleted = append(m.Deleted, ids...)
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Result builds a query result for an entry in a partition.
func Result(scope, namespace, entryID string, score float32) vector.QueryResult {
	return vector.QueryResult{
		Document: vector.Document{
			ID:        scope + "/" + namespace + "/" + entryID,
			EntryID:   entryID,
			Scope:     scope,
			Namespace: namespace,
		},
		Score: score,
	}
}
