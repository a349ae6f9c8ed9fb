package domain

import "time"

type AuctionID uint64

// Principal identifies the caller of an operation.
type Principal string

const AnonymousPrincipal Principal = "anonymous"

type AuctionState string

const (
	AuctionStateActive AuctionState = "active"
	AuctionStateEnded  AuctionState = "ended"
)

type Item struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       []byte `json:"image"`
}

type Bid struct {
	Price      uint64    `json:"price"`
	Time       time.Time `json:"time"`
	Originator Principal `json:"originator"`
}

type Auction struct {
	ID         AuctionID     `json:"id"`
	Item       Item          `json:"item"`
	BidHistory []Bid         `json:"bid_history"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"` // original duration, never changes
	State      AuctionState  `json:"state"`
}

func (a *Auction) IsActive() bool {
	return a.State == AuctionStateActive
}

// RemainingMarker is the two-valued remaining time: the original duration
// while active, zero once ended.
func (a *Auction) RemainingMarker() time.Duration {
	if !a.IsActive() {
		return 0
	}
	return a.Duration
}

// HighestBid returns the last accepted bid, or nil if there is none.
func (a *Auction) HighestBid() *Bid {
	if len(a.BidHistory) == 0 {
		return nil
	}
	bid := a.BidHistory[len(a.BidHistory)-1]
	return &bid
}

// Clone returns a deep copy so callers never share slices with the store.
func (a Auction) Clone() Auction {
	out := a
	out.Item.Image = append([]byte(nil), a.Item.Image...)
	out.BidHistory = append([]Bid(nil), a.BidHistory...)
	return out
}

type AuctionOverview struct {
	ID   AuctionID `json:"id"`
	Item Item      `json:"item"`
}

type AuctionDetails struct {
	Item       Item      `json:"item"`
	BidHistory []Bid     `json:"bid_history"`
	EndTime    time.Time `json:"end_time"`
}
