package service

import "github.com/rl1809/auction-ledger/internal/core/domain"

// AdmitBid decides whether a bid at price may be appended to the auction's
// history. Ties go to the earlier bidder, and an opening bid must be positive.
func AdmitBid(auction *domain.Auction, price uint64) error {
	if !auction.IsActive() {
		return domain.ErrAuctionEnded
	}

	highest := auction.HighestBid()
	if highest == nil {
		if price == 0 {
			return domain.ErrBidTooLow
		}
		return nil
	}

	if price <= highest.Price {
		return domain.ErrBidTooLow
	}

	return nil
}
