package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/vector"
)

// NewTestEntry builds a valid entry in scope/namespace with fixed metadata.
func NewTestEntry(scope memory.Scope, namespace, id, content string, tags ...string) *memory.Entry {
	e, err := memory.NewEntry(memory.Entry{
		ID:           id,
		Scope:        scope,
		Namespace:    namespace,
		OwnerAgentID: "agent-1",
		Content:      content,
		Tags:         tags,
		Priority:     memory.PriorityMedium,
		Layer:        memory.LayerLongTerm,
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:       memory.SourceManual,
		Confidence:   1,
	})
	if err != nil {
		panic(err)
	}
	return e
}

// MockIndex is an in-memory vector.Index that records calls. Query returns
// QueryResults filtered to the requested partition.
type MockIndex struct {
	mu sync.Mutex

	Upserted map[memory.Ref]*memory.Entry
	Deleted  []memory.Ref

	// QueryResults maps "scope/namespace" to the ids returned for it.
	QueryResults map[string][]string

	FailUpsert bool
	FailQuery  bool
}

func NewMockIndex() *MockIndex {
	return &MockIndex{
		Upserted:     make(map[memory.Ref]*memory.Entry),
		QueryResults: make(map[string][]string),
	}
}

func (m *MockIndex) Upsert(_ context.Context, e *memory.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsert {
		return errors.New("mock index upsert failure")
	}
	m.Upserted[e.Ref()] = e.Clone()
	return nil
}

func (m *MockIndex) Delete(_ context.Context, ref memory.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Upserted, ref)
	m.Deleted = append(m.Deleted, ref)
	return nil
}

func (m *MockIndex) Query(_ context.Context, scope memory.Scope, namespace, _ string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailQuery {
		return nil, errors.New("mock index query failure")
	}
	ids := m.QueryResults[string(scope)+"/"+namespace]
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return append([]string(nil), ids...), nil
}

func (m *MockIndex) Close() error {
	return nil
}

var _ vector.Index = (*MockIndex)(nil)
