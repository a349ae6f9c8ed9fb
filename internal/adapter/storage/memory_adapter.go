package storage

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

// MemoryAdapter keeps encoded records in process memory. Records are stored
// as bytes so that callers never alias stored state.
type MemoryAdapter struct {
	mu      sync.RWMutex
	records map[domain.AuctionID][]byte
	nextID  domain.AuctionID
	codec   recordCodec
}

func NewMemoryAdapter(maxRecordSize int) *MemoryAdapter {
	return &MemoryAdapter{
		records: make(map[domain.AuctionID][]byte),
		codec:   newRecordCodec(maxRecordSize),
	}
}

func (m *MemoryAdapter) Create(ctx context.Context, build func(id domain.AuctionID) domain.Auction) (domain.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	a := build(id)
	a.ID = id

	data, err := m.codec.encode(a)
	if err != nil {
		return domain.Auction{}, err
	}

	m.records[id] = data
	m.nextID++
	return a.Clone(), nil
}

func (m *MemoryAdapter) Get(ctx context.Context, id domain.AuctionID) (*domain.Auction, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	return m.codec.decode(data)
}

func (m *MemoryAdapter) Update(ctx context.Context, id domain.AuctionID, fn func(*domain.Auction) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.records[id]
	if !ok {
		return domain.ErrAuctionNotFound
	}

	a, err := m.codec.decode(data)
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		return err
	}

	updated, err := m.codec.encode(*a)
	if err != nil {
		return err
	}
	m.records[id] = updated
	return nil
}

func (m *MemoryAdapter) List(ctx context.Context) ([]domain.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := slices.Sorted(maps.Keys(m.records))
	out := make([]domain.Auction, 0, len(ids))
	for _, id := range ids {
		a, err := m.codec.decode(m.records[id])
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *MemoryAdapter) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
