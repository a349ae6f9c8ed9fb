package domain

import "time"

type AuctionEventType string

const (
	AuctionEventCreated     AuctionEventType = "created"
	AuctionEventBidAccepted AuctionEventType = "bid_accepted"
	AuctionEventClosed      AuctionEventType = "closed"
)

// AuctionEvent is published after a mutation has been committed to the store.
type AuctionEvent struct {
	ID         string           `json:"id"`
	Type       AuctionEventType `json:"type"`
	AuctionID  AuctionID        `json:"auction_id"`
	Bid        *Bid             `json:"bid,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
