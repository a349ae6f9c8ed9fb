package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

const auctionSequenceName = "auctions"

// sqlStore holds the read-modify-write logic shared by the MySQL and SQLite
// adapters. lockSuffix is appended to SELECTs that precede a write.
type sqlStore struct {
	db         *sql.DB
	codec      recordCodec
	lockSuffix string
}

func (s *sqlStore) Create(ctx context.Context, build func(id domain.AuctionID) domain.Auction) (domain.Auction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT next_id FROM auction_sequence WHERE name = ?`+s.lockSuffix, auctionSequenceName,
	).Scan(&next)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("read auction sequence: %w", err)
	}

	id := domain.AuctionID(next)
	a := build(id)
	a.ID = id

	data, err := s.codec.encode(a)
	if err != nil {
		return domain.Auction{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO auctions (id, record) VALUES (?, ?)`, next, data,
	); err != nil {
		return domain.Auction{}, fmt.Errorf("insert auction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auction_sequence SET next_id = next_id + 1 WHERE name = ?`, auctionSequenceName,
	); err != nil {
		return domain.Auction{}, fmt.Errorf("advance auction sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Auction{}, fmt.Errorf("commit: %w", err)
	}
	return a.Clone(), nil
}

func (s *sqlStore) Get(ctx context.Context, id domain.AuctionID) (*domain.Auction, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM auctions WHERE id = ?`, int64(id),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query auction: %w", err)
	}
	return s.codec.decode(data)
}

func (s *sqlStore) Update(ctx context.Context, id domain.AuctionID, fn func(*domain.Auction) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT record FROM auctions WHERE id = ?`+s.lockSuffix, int64(id),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAuctionNotFound
	}
	if err != nil {
		return fmt.Errorf("query auction: %w", err)
	}

	a, err := s.codec.decode(data)
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		return err
	}

	updated, err := s.codec.encode(*a)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auctions SET record = ? WHERE id = ?`, updated, int64(id),
	); err != nil {
		return fmt.Errorf("update auction: %w", err)
	}

	return tx.Commit()
}

func (s *sqlStore) List(ctx context.Context) ([]domain.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM auctions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query auctions: %w", err)
	}
	defer rows.Close()

	var out []domain.Auction
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		a, err := s.codec.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM auctions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return n, nil
}

func (s *sqlStore) migrate(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
