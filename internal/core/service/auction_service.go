package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/port"
)

const (
	DefaultSystemPrincipal domain.Principal = "system"

	closeTimeout = 5 * time.Second
)

// errUnchanged aborts an update without writing; it never leaves this package.
var errUnchanged = errors.New("record unchanged")

type AuctionService struct {
	repo       port.AuctionRepository
	scheduler  port.Scheduler
	system     domain.Principal
	now        func() time.Time
	logger     *slog.Logger
	eventQueue chan domain.AuctionEvent

	mu     sync.RWMutex
	closed bool
}

type Option func(*AuctionService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuctionService) { s.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *AuctionService) { s.logger = logger }
}

// WithSystemPrincipal sets the only identity allowed to close auctions.
func WithSystemPrincipal(p domain.Principal) Option {
	return func(s *AuctionService) { s.system = p }
}

func NewAuctionService(repo port.AuctionRepository, scheduler port.Scheduler, queueSize int, opts ...Option) *AuctionService {
	s := &AuctionService{
		repo:       repo,
		scheduler:  scheduler,
		system:     DefaultSystemPrincipal,
		now:        time.Now,
		logger:     slog.Default(),
		eventQueue: make(chan domain.AuctionEvent, queueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAuction stores a new auction and arms the timer that ends it.
// A zero duration produces an auction that is already ended.
func (s *AuctionService) CreateAuction(ctx context.Context, item domain.Item, duration time.Duration) (domain.AuctionID, error) {
	if duration < 0 {
		return 0, domain.ErrInvalidDuration
	}

	now := s.now()
	auction, err := s.repo.Create(ctx, func(id domain.AuctionID) domain.Auction {
		state := domain.AuctionStateActive
		if duration == 0 {
			state = domain.AuctionStateEnded
		}
		return domain.Auction{
			ID:         id,
			Item:       item,
			BidHistory: []domain.Bid{},
			EndTime:    now.Add(duration),
			Duration:   duration,
			State:      state,
		}
	})
	if err != nil {
		return 0, fmt.Errorf("create auction: %w", err)
	}

	s.emit(domain.AuctionEventCreated, auction.ID, nil)
	if auction.IsActive() {
		s.arm(auction.ID, duration)
	}

	s.logger.InfoContext(ctx, "auction created",
		slog.Uint64("auction_id", uint64(auction.ID)),
		slog.Duration("duration", duration),
		slog.Time("end_time", auction.EndTime),
	)

	return auction.ID, nil
}

// CloseAuction moves an auction to the ended state. Only the system
// principal may call it; closing an ended or unknown auction is a no-op.
func (s *AuctionService) CloseAuction(ctx context.Context, id domain.AuctionID, caller domain.Principal) error {
	if caller != s.system {
		return domain.ErrUnauthorized
	}

	err := s.repo.Update(ctx, id, func(a *domain.Auction) error {
		if !a.IsActive() {
			return errUnchanged
		}
		a.State = domain.AuctionStateEnded
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged), errors.Is(err, domain.ErrAuctionNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("close auction %d: %w", id, err)
	}

	s.emit(domain.AuctionEventClosed, id, nil)
	s.logger.InfoContext(ctx, "auction closed", slog.Uint64("auction_id", uint64(id)))
	return nil
}

// SubmitBid appends a bid if the admission rules allow it. The check and
// the append run as one atomic update on the record.
func (s *AuctionService) SubmitBid(ctx context.Context, id domain.AuctionID, price uint64, originator domain.Principal) error {
	if originator == "" {
		originator = domain.AnonymousPrincipal
	}

	var accepted domain.Bid
	err := s.repo.Update(ctx, id, func(a *domain.Auction) error {
		if err := AdmitBid(a, price); err != nil {
			return err
		}
		accepted = domain.Bid{
			Price:      price,
			Time:       s.now(),
			Originator: originator,
		}
		a.BidHistory = append(a.BidHistory, accepted)
		return nil
	})
	if err != nil {
		if isBidRejection(err) {
			return err
		}
		return fmt.Errorf("submit bid: %w", err)
	}

	s.emit(domain.AuctionEventBidAccepted, id, &accepted)
	s.logger.InfoContext(ctx, "bid accepted",
		slog.Uint64("auction_id", uint64(id)),
		slog.Uint64("price", price),
		slog.String("originator", string(originator)),
	)
	return nil
}

// Resume re-arms timers for auctions that are still active, e.g. after a
// restart. Auctions whose end time already passed are closed right away.
func (s *AuctionService) Resume(ctx context.Context) (int, error) {
	auctions, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("resume auctions: %w", err)
	}

	armed := 0
	now := s.now()
	for _, a := range auctions {
		if !a.IsActive() {
			continue
		}
		remaining := a.EndTime.Sub(now)
		if remaining <= 0 {
			if err := s.CloseAuction(ctx, a.ID, s.system); err != nil {
				return armed, err
			}
			continue
		}
		s.arm(a.ID, remaining)
		armed++
	}
	return armed, nil
}

// EventQueue returns committed auction events for publisher workers.
func (s *AuctionService) EventQueue() <-chan domain.AuctionEvent {
	return s.eventQueue
}

// Shutdown closes the event queue. Events emitted afterwards are dropped.
func (s *AuctionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.eventQueue)
}

func (s *AuctionService) arm(id domain.AuctionID, d time.Duration) {
	s.scheduler.Schedule(d, func() {
		s.closeFromTimer(id)
	})
}

// closeFromTimer re-reads the record at fire time through CloseAuction.
func (s *AuctionService) closeFromTimer(id domain.AuctionID) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := s.CloseAuction(ctx, id, s.system); err != nil {
		s.logger.Error("scheduled close failed",
			slog.Uint64("auction_id", uint64(id)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuctionService) emit(eventType domain.AuctionEventType, id domain.AuctionID, bid *domain.Bid) {
	event := domain.AuctionEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		AuctionID:  id,
		Bid:        bid,
		OccurredAt: s.now(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		s.logger.Warn("event queue full, dropping event",
			slog.String("event_id", event.ID),
			slog.String("type", string(eventType)),
			slog.Uint64("auction_id", uint64(id)),
		)
	}
}

func isBidRejection(err error) bool {
	return errors.Is(err, domain.ErrAuctionNotFound) ||
		errors.Is(err, domain.ErrAuctionEnded) ||
		errors.Is(err, domain.ErrBidTooLow)
}
