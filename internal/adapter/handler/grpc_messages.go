package handler

import (
	"time"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

type CreateAuctionRequest struct {
	Item            domain.Item `json:"item"`
	DurationSeconds uint64      `json:"duration_seconds"`
}

type CreateAuctionResponse struct {
	ID domain.AuctionID `json:"id"`
}

type AuctionRequest struct {
	ID domain.AuctionID `json:"id"`
}

type AuctionResponse struct {
	Auction domain.Auction `json:"auction"`
}

type AuctionDetailsResponse struct {
	Details domain.AuctionDetails `json:"details"`
}

type RemainingTimeResponse struct {
	RemainingNanos int64 `json:"remaining_ns"`
}

func (r *RemainingTimeResponse) Remaining() time.Duration {
	return time.Duration(r.RemainingNanos)
}

type ListRequest struct{}

type ListResponse struct {
	Auctions []domain.AuctionOverview `json:"auctions"`
}

// SubmitBidRequest carries no originator; the server takes it from the
// x-principal metadata entry.
type SubmitBidRequest struct {
	ID    domain.AuctionID `json:"id"`
	Price uint64           `json:"price"`
}

type SubmitBidResponse struct {
	Accepted bool `json:"accepted"`
}

// HighestBidResponse has a nil Bid while the auction has no bids.
type HighestBidResponse struct {
	Bid *domain.Bid `json:"bid,omitempty"`
}

type BidsResponse struct {
	Bids []domain.Bid `json:"bids"`
}
