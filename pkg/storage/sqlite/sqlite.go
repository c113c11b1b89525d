// Package sqlite provides a SQLite-backed memory store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/mnemo/pkg/storage/sqlstore"
)

// Store implements memory.Store using SQLite.
type Store struct {
	*sqlstore.Store
}

// NewStore opens the database at dbPath and migrates it.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewStore(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and serializes
	// writers the way SQLite expects.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	s, err := sqlstore.New(ctx, db, sqlstore.DialectSQLite, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{Store: s}, nil
}
