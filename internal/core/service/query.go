package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

func (s *AuctionService) GetAuction(ctx context.Context, id domain.AuctionID) (domain.Auction, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	return a.Clone(), nil
}

func (s *AuctionService) GetAuctionDetails(ctx context.Context, id domain.AuctionID) (domain.AuctionDetails, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return domain.AuctionDetails{}, err
	}
	c := a.Clone()
	return domain.AuctionDetails{
		Item:       c.Item,
		BidHistory: c.BidHistory,
		EndTime:    c.EndTime,
	}, nil
}

// GetRemainingTime is zero once the auction has ended, otherwise the wall
// clock time left until its end time (never negative).
func (s *AuctionService) GetRemainingTime(ctx context.Context, id domain.AuctionID) (time.Duration, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if !a.IsActive() {
		return 0, nil
	}
	remaining := a.EndTime.Sub(s.now())
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *AuctionService) ListOverview(ctx context.Context) ([]domain.AuctionOverview, error) {
	return s.overviews(ctx, func(*domain.Auction) bool { return true })
}

func (s *AuctionService) ListAll(ctx context.Context) ([]domain.AuctionOverview, error) {
	return s.overviews(ctx, func(*domain.Auction) bool { return true })
}

func (s *AuctionService) ListActive(ctx context.Context) ([]domain.AuctionOverview, error) {
	return s.overviews(ctx, func(a *domain.Auction) bool { return a.IsActive() })
}

func (s *AuctionService) ListEnded(ctx context.Context) ([]domain.AuctionOverview, error) {
	return s.overviews(ctx, func(a *domain.Auction) bool { return !a.IsActive() })
}

// GetHighestBid returns nil when the auction has no bids yet.
func (s *AuctionService) GetHighestBid(ctx context.Context, id domain.AuctionID) (*domain.Bid, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.HighestBid(), nil
}

func (s *AuctionService) GetAllBids(ctx context.Context, id domain.AuctionID) ([]domain.Bid, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return append([]domain.Bid{}, a.BidHistory...), nil
}

func (s *AuctionService) CountAuctions(ctx context.Context) (int, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return n, nil
}

func (s *AuctionService) load(ctx context.Context, id domain.AuctionID) (*domain.Auction, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get auction %d: %w", id, err)
	}
	if a == nil {
		return nil, domain.ErrAuctionNotFound
	}
	return a, nil
}

func (s *AuctionService) overviews(ctx context.Context, keep func(*domain.Auction) bool) ([]domain.AuctionOverview, error) {
	auctions, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}

	out := make([]domain.AuctionOverview, 0, len(auctions))
	for i := range auctions {
		a := &auctions[i]
		if !keep(a) {
			continue
		}
		out = append(out, domain.AuctionOverview{ID: a.ID, Item: a.Clone().Item})
	}
	return out, nil
}
