package port

import (
	"context"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

type EventPublisher interface {
	// Publish delivers a committed auction event to downstream consumers
	Publish(ctx context.Context, event domain.AuctionEvent) error
}
