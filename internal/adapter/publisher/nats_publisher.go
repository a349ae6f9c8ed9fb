package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

const natsSubjectPrefix = "auction.events."

// NATSPublisher publishes events on auction.events.{auctionID}.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func natsSubject(id domain.AuctionID) string {
	return fmt.Sprintf("%s%d", natsSubjectPrefix, id)
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(natsSubject(event.AuctionID), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
