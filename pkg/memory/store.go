package memory

import "context"

// Store is the storage backend contract for memory entries. Every operation is
// confined to a single (scope, namespace) partition.
type Store interface {
	// Add persists entry, replacing any entry with the same id in the same
	// partition, and returns the stored value.
	Add(ctx context.Context, entry *Entry) (*Entry, error)

	// Get fetches one entry. A missing entry yields an error matching
	// ErrNotFound.
	Get(ctx context.Context, id string, scope Scope, namespace string) (*Entry, error)

	// Update replaces an existing entry in place. Backends that cannot mutate
	// in place return an error matching ErrNotImplemented.
	Update(ctx context.Context, entry *Entry) (*Entry, error)

	// Delete removes an entry and reports whether it existed.
	Delete(ctx context.Context, id string, scope Scope, namespace string) (bool, error)

	// Query returns a ranked page of entries matching q.
	Query(ctx context.Context, q Query) (*ListResult, error)

	// List returns a page of entries in creation order, optionally restricted
	// to one owner.
	List(ctx context.Context, scope Scope, namespace string, limit int, cursor Cursor, owner string) (*ListResult, error)

	// Close releases backend resources.
	Close() error
}

// collectPageSize is the page size used when draining a paginated sequence.
const collectPageSize = 200

// CollectQuery follows next cursors from q.Cursor until the sequence is
// exhausted and returns every matching entry in order.
func CollectQuery(ctx context.Context, store Store, q Query) ([]*Entry, error) {
	q.Limit = collectPageSize

	var all []*Entry
	for {
		page, err := store.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)

		if !page.HasMore || page.NextCursor == nil {
			return all, nil
		}
		q.Cursor = *page.NextCursor
	}
}

// CollectList drains List for one partition.
func CollectList(ctx context.Context, store Store, scope Scope, namespace string, pageSize int, owner string) ([]*Entry, error) {
	if pageSize <= 0 {
		pageSize = collectPageSize
	}

	var (
		all    []*Entry
		cursor Cursor
	)
	for {
		page, err := store.List(ctx, scope, namespace, pageSize, cursor, owner)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)

		if !page.HasMore || page.NextCursor == nil {
			return all, nil
		}
		cursor = *page.NextCursor
	}
}
