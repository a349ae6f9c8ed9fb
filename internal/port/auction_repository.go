package port

import (
	"context"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

type AuctionRepository interface {
	// Create allocates the next auction ID and stores the record built for it.
	// IDs come from a counter kept beside the table and are never reused.
	Create(ctx context.Context, build func(id domain.AuctionID) domain.Auction) (domain.Auction, error)

	// Get returns the auction, or nil if the ID is unknown
	Get(ctx context.Context, id domain.AuctionID) (*domain.Auction, error)

	// Update runs fn against the current record and writes the result back atomically.
	// Nothing is written if fn returns an error. Returns domain.ErrAuctionNotFound for unknown IDs.
	Update(ctx context.Context, id domain.AuctionID, fn func(*domain.Auction) error) error

	// List returns every auction in ascending ID order
	List(ctx context.Context) ([]domain.Auction, error)

	// Count returns the number of stored auctions
	Count(ctx context.Context) (int, error)
}
