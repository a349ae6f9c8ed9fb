package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

// DefaultMaxRecordSize bounds an encoded auction record, which in practice
// bounds the size of the item image.
const DefaultMaxRecordSize = 5000

var ErrRecordTooLarge = errors.New("auction record exceeds maximum size")

type recordCodec struct {
	maxSize int
}

func newRecordCodec(maxSize int) recordCodec {
	if maxSize <= 0 {
		maxSize = DefaultMaxRecordSize
	}
	return recordCodec{maxSize: maxSize}
}

func (c recordCodec) encode(a domain.Auction) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode auction %d: %w", a.ID, err)
	}
	if len(data) > c.maxSize {
		return nil, fmt.Errorf("auction %d is %d bytes, limit %d: %w", a.ID, len(data), c.maxSize, ErrRecordTooLarge)
	}
	return data, nil
}

func (c recordCodec) decode(data []byte) (*domain.Auction, error) {
	var a domain.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode auction: %w", err)
	}
	if a.BidHistory == nil {
		a.BidHistory = []domain.Bid{}
	}
	return &a, nil
}
