package publisher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/port"
)

type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.Uint64("auction_id", uint64(event.AuctionID)),
	}
	if event.Bid != nil {
		attrs = append(attrs, slog.Uint64("price", event.Bid.Price))
	}
	p.logger.InfoContext(ctx, "auction event", attrs...)
	return nil
}

// Multi sends every event to all of its publishers, even if some fail.
type Multi []port.EventPublisher

func (m Multi) Publish(ctx context.Context, event domain.AuctionEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
