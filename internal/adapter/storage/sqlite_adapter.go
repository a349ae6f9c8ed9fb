package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id INTEGER NOT NULL PRIMARY KEY,
		record BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auction_sequence (
		name TEXT NOT NULL PRIMARY KEY,
		next_id INTEGER NOT NULL
	)`,
	`INSERT OR IGNORE INTO auction_sequence (name, next_id) VALUES ('auctions', 0)`,
}

// SQLiteAdapter stores auctions in a single database file. It uses one
// connection, so every transaction is serialized.
type SQLiteAdapter struct {
	*sqlStore
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, maxRecordSize int) (*SQLiteAdapter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	adapter := &SQLiteAdapter{&sqlStore{
		db:    db,
		codec: newRecordCodec(maxRecordSize),
	}}
	if err := adapter.migrate(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return adapter, nil
}

func (s *SQLiteAdapter) Close() error {
	return s.db.Close()
}
