package storage

import (
	"context"
	"database/sql"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS auctions (
		id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
		record MEDIUMBLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS auction_sequence (
		name VARCHAR(32) NOT NULL PRIMARY KEY,
		next_id BIGINT UNSIGNED NOT NULL
	)`,
	`INSERT IGNORE INTO auction_sequence (name, next_id) VALUES ('auctions', 0)`,
}

// MySQLAdapter serializes writes per auction with SELECT ... FOR UPDATE
// row locks; the sequence row lock serializes ID allocation.
type MySQLAdapter struct {
	*sqlStore
}

func NewMySQLAdapter(db *sql.DB, maxRecordSize int) *MySQLAdapter {
	return &MySQLAdapter{&sqlStore{
		db:         db,
		codec:      newRecordCodec(maxRecordSize),
		lockSuffix: " FOR UPDATE",
	}}
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	return m.migrate(ctx, mysqlSchema)
}
