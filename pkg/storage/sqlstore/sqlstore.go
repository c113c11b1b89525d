// Package sqlstore provides a database/sql implementation of memory.Store
// shared by the SQLite and PostgreSQL backends.
//
// Entries live in a single relational table keyed by (scope, namespace, id)
// and indexed by (scope, namespace). Structural filters run in SQL; free-text
// ranking runs in Go via memory.Rank so both dialects score identically.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/mnemo/pkg/memory"
)

// Dialect selects placeholder syntax for the underlying database.
type Dialect int

const (
	// DialectSQLite uses "?" placeholders.
	DialectSQLite Dialect = iota

	// DialectPostgres uses "$N" placeholders.
	DialectPostgres
)

const schema = `
CREATE TABLE IF NOT EXISTS memory_entries (
	id TEXT NOT NULL,
	scope TEXT NOT NULL,
	namespace TEXT NOT NULL,
	owner_agent_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '[]',
	priority TEXT NOT NULL,
	layer TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL,
	expires_at BIGINT,
	source TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	version INTEGER NOT NULL,
	etag TEXT NOT NULL,
	conflict INTEGER NOT NULL DEFAULT 0,
	conflict_of TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (scope, namespace, id)
);

CREATE INDEX IF NOT EXISTS idx_memory_entries_scope_namespace ON memory_entries(scope, namespace);

CREATE INDEX IF NOT EXISTS idx_memory_entries_owner ON memory_entries(scope, namespace, owner_agent_id);
`

const columns = `id, scope, namespace, owner_agent_id, content, tags, priority, layer,
	created_at, updated_at, expires_at, source, confidence, version, etag, conflict, conflict_of`

// Store implements memory.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New wraps db and creates the schema if it does not exist.
func New(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the entries table and its indexes. PostgreSQL rejects
// multiple statements in a prepared Exec, so statements run one at a time.
func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// DB exposes the underlying handle for dialect specific maintenance.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Add inserts entry or replaces the entry with the same id in its partition.
func (s *Store) Add(ctx context.Context, entry *memory.Entry) (*memory.Entry, error) {
	if entry == nil {
		return nil, errors.New("cannot store nil entry")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	args, err := entryArgs(entry)
	if err != nil {
		return nil, err
	}

	query := `INSERT INTO memory_entries (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, namespace, id) DO UPDATE SET
			owner_agent_id = excluded.owner_agent_id,
			content = excluded.content,
			tags = excluded.tags,
			priority = excluded.priority,
			layer = excluded.layer,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			source = excluded.source,
			confidence = excluded.confidence,
			version = excluded.version,
			etag = excluded.etag,
			conflict = excluded.conflict,
			conflict_of = excluded.conflict_of`

	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to insert entry: %w", err)
	}

	s.logger.Debug("stored memory entry",
		"id", entry.ID,
		"scope", entry.Scope,
		"namespace", entry.Namespace,
	)

	return entry.Clone(), nil
}

// Get retrieves one entry.
func (s *Store) Get(ctx context.Context, id string, scope memory.Scope, namespace string) (*memory.Entry, error) {
	query := `SELECT ` + columns + ` FROM memory_entries WHERE scope = ? AND namespace = ? AND id = ?`

	row := s.db.QueryRowContext(ctx, s.rebind(query), string(scope), namespace, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.NotFoundError(id, scope, namespace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	return entry, nil
}

// Update replaces an existing entry.
func (s *Store) Update(ctx context.Context, entry *memory.Entry) (*memory.Entry, error) {
	if entry == nil {
		return nil, errors.New("cannot update nil entry")
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	args, err := entryArgs(entry)
	if err != nil {
		return nil, err
	}

	// entryArgs leads with id, scope, namespace; the UPDATE wants them last.
	setArgs := append([]any{}, args[3:]...)
	setArgs = append(setArgs, args[1], args[2], args[0])

	query := `UPDATE memory_entries SET
			owner_agent_id = ?, content = ?, tags = ?, priority = ?, layer = ?,
			created_at = ?, updated_at = ?, expires_at = ?, source = ?, confidence = ?,
			version = ?, etag = ?, conflict = ?, conflict_of = ?
		WHERE scope = ? AND namespace = ? AND id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), setArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return nil, memory.NotFoundError(entry.ID, entry.Scope, entry.Namespace)
	}

	return entry.Clone(), nil
}

// Delete removes an entry and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string, scope memory.Scope, namespace string) (bool, error) {
	query := `DELETE FROM memory_entries WHERE scope = ? AND namespace = ? AND id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), string(scope), namespace, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return n > 0, nil
}

// List returns entries in creation order. A limit <= 0 returns the rest of
// the partition.
func (s *Store) List(ctx context.Context, scope memory.Scope, namespace string, limit int, cursor memory.Cursor, owner string) (*memory.ListResult, error) {
	return s.page(ctx, memory.Query{
		Scope:     scope,
		Namespace: namespace,
		Owner:     owner,
		Limit:     limit,
		Cursor:    cursor,
	})
}

// Query ranks entries matching q. Plain structural listings are paginated in
// SQL; tag filters and free text are evaluated in Go over the partition.
func (s *Store) Query(ctx context.Context, q memory.Query) (*memory.ListResult, error) {
	if strings.TrimSpace(q.Text) == "" && len(q.Tags) == 0 {
		return s.page(ctx, q)
	}

	candidates, err := s.selectEntries(ctx, q, -1, 0)
	if err != nil {
		return nil, err
	}

	return memory.Paginate(memory.Rank(candidates, q), q.Cursor, q.Limit), nil
}

// page runs a creation-ordered LIMIT/OFFSET query, fetching one extra row to
// learn whether another page exists.
func (s *Store) page(ctx context.Context, q memory.Query) (*memory.ListResult, error) {
	if q.Limit <= 0 {
		entries, err := s.selectEntries(ctx, q, -1, q.Cursor.Offset)
		if err != nil {
			return nil, err
		}
		return memory.NewListResult(entries, nil, false)
	}

	entries, err := s.selectEntries(ctx, q, q.Limit+1, q.Cursor.Offset)
	if err != nil {
		return nil, err
	}

	if len(entries) > q.Limit {
		next := memory.Cursor{Offset: q.Cursor.Offset + q.Limit}
		return memory.NewListResult(entries[:q.Limit], &next, true)
	}

	return memory.NewListResult(entries, nil, false)
}

// selectEntries loads the partition of q in creation order applying the layer
// and owner filters. A negative limit means no limit.
func (s *Store) selectEntries(ctx context.Context, q memory.Query, limit, offset int) ([]*memory.Entry, error) {
	var (
		sb   strings.Builder
		args = []any{string(q.Scope), q.Namespace}
	)

	sb.WriteString(`SELECT ` + columns + ` FROM memory_entries WHERE scope = ? AND namespace = ?`)
	if q.Layer != "" {
		sb.WriteString(` AND layer = ?`)
		args = append(args, string(q.Layer))
	}
	if q.Owner != "" {
		sb.WriteString(` AND owner_agent_id = ?`)
		args = append(args, q.Owner)
	}
	sb.WriteString(` ORDER BY created_at ASC, id ASC`)

	switch {
	case limit >= 0:
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, offset)
	case offset > 0:
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded
		// there while PostgreSQL accepts ALL.
		if s.dialect == DialectPostgres {
			sb.WriteString(` LIMIT ALL OFFSET ?`)
		} else {
			sb.WriteString(` LIMIT -1 OFFSET ?`)
		}
		args = append(args, offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*memory.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites "?" placeholders for the store's dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var (
		sb strings.Builder
		n  int
	)
	sb.Grow(len(query) + 16)
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}

	return sb.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func entryArgs(e *memory.Entry) ([]any, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	var expires sql.NullInt64
	if e.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: toNanos(*e.ExpiresAt), Valid: true}
	}

	conflict := 0
	if e.Conflict {
		conflict = 1
	}

	return []any{
		e.ID,
		string(e.Scope),
		e.Namespace,
		e.OwnerAgentID,
		e.Content,
		string(tagsJSON),
		string(e.Priority),
		string(e.Layer),
		toNanos(e.CreatedAt),
		toNanos(e.UpdatedAt),
		expires,
		string(e.Source),
		e.Confidence,
		e.Version,
		e.ETag,
		conflict,
		e.ConflictOf,
	}, nil
}

func scanEntry(row rowScanner) (*memory.Entry, error) {
	var (
		e                    memory.Entry
		scope, priority      string
		layer, source, tags  string
		createdAt, updatedAt int64
		expiresAt            sql.NullInt64
		conflict             int64
	)

	err := row.Scan(
		&e.ID,
		&scope,
		&e.Namespace,
		&e.OwnerAgentID,
		&e.Content,
		&tags,
		&priority,
		&layer,
		&createdAt,
		&updatedAt,
		&expiresAt,
		&source,
		&e.Confidence,
		&e.Version,
		&e.ETag,
		&conflict,
		&e.ConflictOf,
	)
	if err != nil {
		return nil, err
	}

	e.Scope = memory.Scope(scope)
	e.Priority = memory.Priority(priority)
	e.Layer = memory.Layer(layer)
	e.Source = memory.Source(source)
	e.CreatedAt = fromNanos(createdAt)
	e.UpdatedAt = fromNanos(updatedAt)
	e.Conflict = conflict != 0
	if expiresAt.Valid {
		t := fromNanos(expiresAt.Int64)
		e.ExpiresAt = &t
	}

	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	return &e, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
