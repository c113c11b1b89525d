package memory

import "encoding/json"

// Query selects entries within one (scope, namespace) partition.
type Query struct {
	Scope     Scope
	Namespace string

	// Text is optional free text. When empty the query is a plain listing in
	// creation order.
	Text string

	// Tags must all be present on a matching entry.
	Tags []string

	// Layer restricts matches to one layer when non-empty.
	Layer Layer

	// Owner restricts matches to one owning agent when non-empty.
	Owner string

	Limit  int
	Cursor Cursor
}

// Matches reports whether e passes the structural filters of q (partition,
// layer, owner and tags). Free text is not considered.
func (q Query) Matches(e *Entry) bool {
	if e.Scope != q.Scope || e.Namespace != q.Namespace {
		return false
	}
	if q.Layer != "" && e.Layer != q.Layer {
		return false
	}
	if q.Owner != "" && e.OwnerAgentID != q.Owner {
		return false
	}

	return e.HasTags(q.Tags)
}

// ListResult is one page of entries.
type ListResult struct {
	Entries    []*Entry
	NextCursor *Cursor
	HasMore    bool
}

// NewListResult builds a page, rejecting a result that claims more entries
// without a cursor to fetch them.
func NewListResult(entries []*Entry, next *Cursor, hasMore bool) (*ListResult, error) {
	if hasMore && next == nil {
		return nil, Errorf(CodeInvalidParams, "has_more requires next_cursor")
	}
	if entries == nil {
		entries = []*Entry{}
	}

	return &ListResult{Entries: entries, NextCursor: next, HasMore: hasMore}, nil
}

type listResultJSON struct {
	Items      []*Entry `json:"items"`
	NextCursor *string  `json:"next_cursor"`
	HasMore    bool     `json:"has_more"`
}

// MarshalJSON renders the wire form with an opaque next_cursor string.
func (r *ListResult) MarshalJSON() ([]byte, error) {
	out := listResultJSON{Items: r.Entries, HasMore: r.HasMore}
	if out.Items == nil {
		out.Items = []*Entry{}
	}
	if r.NextCursor != nil {
		s := r.NextCursor.String()
		out.NextCursor = &s
	}

	return json.Marshal(out)
}

// Paginate slices an already filtered and ordered sequence. A limit <= 0
// returns everything from the cursor onward.
func Paginate(entries []*Entry, cursor Cursor, limit int) *ListResult {
	start := min(cursor.Offset, len(entries))
	end := len(entries)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := make([]*Entry, 0, end-start)
	page = append(page, entries[start:end]...)

	if end < len(entries) {
		next := Cursor{Offset: end}
		return &ListResult{Entries: page, NextCursor: &next, HasMore: true}
	}

	return &ListResult{Entries: page}
}
