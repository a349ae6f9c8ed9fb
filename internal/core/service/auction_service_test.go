package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/auction-ledger/internal/adapter/storage"
	"github.com/rl1809/auction-ledger/internal/core/domain"
)

// Mock Scheduler: callbacks fire only when the test says so
type fakeScheduler struct {
	mu      sync.Mutex
	pending []scheduled
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func (f *fakeScheduler) Schedule(d time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, scheduled{delay: d, fn: fn})
}

func (f *fakeScheduler) fireAll() {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()

	for _, s := range pending {
		s.fn()
	}
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc       *AuctionService
	repo      *storage.MemoryAdapter
	scheduler *fakeScheduler
	clock     *fakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	repo := storage.NewMemoryAdapter(storage.DefaultMaxRecordSize)
	sched := &fakeScheduler{}
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewAuctionService(repo, sched, 100,
		WithClock(clock.Now),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	t.Cleanup(svc.Shutdown)
	return &testEnv{svc: svc, repo: repo, scheduler: sched, clock: clock}
}

func testItem(title string) domain.Item {
	return domain.Item{Title: title, Description: "a fine " + title, Image: []byte{0xff, 0xd8}}
}

func TestCreateAuction_Success(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.CreateAuction(ctx, testItem("guitar"), 60*time.Second)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	a, err := env.svc.GetAuction(ctx, id)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	if a.State != domain.AuctionStateActive {
		t.Errorf("expected active, got %s", a.State)
	}
	if !a.EndTime.Equal(env.clock.Now().Add(60 * time.Second)) {
		t.Errorf("unexpected end time %v", a.EndTime)
	}
	if a.RemainingMarker() != 60*time.Second {
		t.Errorf("expected remaining marker 60s, got %v", a.RemainingMarker())
	}
	if len(a.BidHistory) != 0 {
		t.Errorf("expected empty history, got %d bids", len(a.BidHistory))
	}

	if env.scheduler.count() != 1 {
		t.Fatalf("expected 1 armed timer, got %d", env.scheduler.count())
	}
	if env.scheduler.pending[0].delay != 60*time.Second {
		t.Errorf("expected timer for 60s, got %v", env.scheduler.pending[0].delay)
	}
}

func TestCreateAuction_IDsStrictlyIncreasing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var last domain.AuctionID
	for i := 0; i < 5; i++ {
		id, err := env.svc.CreateAuction(ctx, testItem("lot"), time.Minute)
		if err != nil {
			t.Fatalf("create %d failed: %v", i, err)
		}
		if i > 0 && id <= last {
			t.Errorf("expected id > %d, got %d", last, id)
		}
		last = id
	}
}

func TestCreateAuction_ZeroDurationEndsImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.svc.CreateAuction(ctx, testItem("flash"), 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := env.svc.SubmitBid(ctx, id, 10, "alice"); !errors.Is(err, domain.ErrAuctionEnded) {
		t.Errorf("expected ErrAuctionEnded, got: %v", err)
	}
	if env.scheduler.count() != 0 {
		t.Errorf("expected no timer, got %d", env.scheduler.count())
	}
}

func TestCreateAuction_NegativeDuration(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.CreateAuction(context.Background(), testItem("x"), -time.Second)
	if !errors.Is(err, domain.ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration, got: %v", err)
	}
}

func TestCreateAuction_RecordTooLarge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item := testItem("poster")
	item.Image = make([]byte, storage.DefaultMaxRecordSize)

	_, err := env.svc.CreateAuction(ctx, item, time.Minute)
	if !errors.Is(err, storage.ErrRecordTooLarge) {
		t.Fatalf("expected ErrRecordTooLarge, got: %v", err)
	}
	if env.scheduler.count() != 0 {
		t.Errorf("expected no timer for rejected auction")
	}

	n, _ := env.svc.CountAuctions(ctx)
	if n != 0 {
		t.Errorf("expected 0 auctions, got %d", n)
	}
}

func TestSubmitBid_ScenarioA(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("painting"), 60*time.Second)

	active, _ := env.svc.ListActive(ctx)
	ended, _ := env.svc.ListEnded(ctx)
	if len(active) != 1 || active[0].ID != id {
		t.Fatalf("expected auction in active list, got %+v", active)
	}
	if len(ended) != 0 {
		t.Fatalf("expected empty ended list, got %+v", ended)
	}

	if err := env.svc.SubmitBid(ctx, id, 100, "alice"); err != nil {
		t.Fatalf("bid 100 failed: %v", err)
	}
	highest, _ := env.svc.GetHighestBid(ctx, id)
	if highest == nil || highest.Price != 100 {
		t.Fatalf("expected highest 100, got %+v", highest)
	}

	if err := env.svc.SubmitBid(ctx, id, 50, "bob"); !errors.Is(err, domain.ErrBidTooLow) {
		t.Errorf("expected ErrBidTooLow, got: %v", err)
	}
	highest, _ = env.svc.GetHighestBid(ctx, id)
	if highest.Price != 100 {
		t.Errorf("expected highest still 100, got %d", highest.Price)
	}

	if err := env.svc.SubmitBid(ctx, id, 150, "bob"); err != nil {
		t.Fatalf("bid 150 failed: %v", err)
	}
	highest, _ = env.svc.GetHighestBid(ctx, id)
	if highest.Price != 150 || highest.Originator != "bob" {
		t.Errorf("expected highest 150 by bob, got %+v", highest)
	}
	if !highest.Time.Equal(env.clock.Now()) {
		t.Errorf("expected bid time %v, got %v", env.clock.Now(), highest.Time)
	}
}

func TestSubmitBid_ScenarioB(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("watch"), 60*time.Second)
	env.svc.SubmitBid(ctx, id, 100, "alice")

	env.clock.Advance(60 * time.Second)
	env.scheduler.fireAll()

	a, _ := env.svc.GetAuction(ctx, id)
	if a.State != domain.AuctionStateEnded || a.RemainingMarker() != 0 {
		t.Errorf("expected ended auction, got state %s marker %v", a.State, a.RemainingMarker())
	}

	remaining, err := env.svc.GetRemainingTime(ctx, id)
	if err != nil || remaining != 0 {
		t.Errorf("expected remaining 0, got %v (%v)", remaining, err)
	}

	active, _ := env.svc.ListActive(ctx)
	ended, _ := env.svc.ListEnded(ctx)
	if len(active) != 0 {
		t.Errorf("expected no active auctions, got %+v", active)
	}
	if len(ended) != 1 || ended[0].ID != id {
		t.Errorf("expected auction in ended list, got %+v", ended)
	}

	if err := env.svc.SubmitBid(ctx, id, 1000, "carol"); !errors.Is(err, domain.ErrAuctionEnded) {
		t.Errorf("expected ErrAuctionEnded, got: %v", err)
	}
	bids, _ := env.svc.GetAllBids(ctx, id)
	if len(bids) != 1 {
		t.Errorf("expected history unchanged, got %d bids", len(bids))
	}
}

func TestSubmitBid_NotFound(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.SubmitBid(context.Background(), 99, 10, "alice")
	if !errors.Is(err, domain.ErrAuctionNotFound) {
		t.Errorf("expected ErrAuctionNotFound, got: %v", err)
	}
}

func TestSubmitBid_EqualPriceRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("bike"), time.Minute)
	env.svc.SubmitBid(ctx, id, 100, "alice")

	if err := env.svc.SubmitBid(ctx, id, 100, "bob"); !errors.Is(err, domain.ErrBidTooLow) {
		t.Errorf("expected ErrBidTooLow for tie, got: %v", err)
	}
	highest, _ := env.svc.GetHighestBid(ctx, id)
	if highest.Originator != "alice" {
		t.Errorf("expected tie to favor alice, got %s", highest.Originator)
	}
}

func TestSubmitBid_AnonymousOriginator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("book"), time.Minute)
	if err := env.svc.SubmitBid(ctx, id, 5, ""); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	highest, _ := env.svc.GetHighestBid(ctx, id)
	if highest.Originator != domain.AnonymousPrincipal {
		t.Errorf("expected anonymous originator, got %s", highest.Originator)
	}
}

func TestSubmitBid_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("coin"), time.Minute)

	totalBidders := 40
	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 1; i <= totalBidders; i++ {
		wg.Add(1)
		go func(price uint64) {
			defer wg.Done()
			if err := env.svc.SubmitBid(ctx, id, price, "bidder"); err == nil {
				accepted.Add(1)
			}
		}(uint64(i * 10))
	}
	wg.Wait()

	bids, _ := env.svc.GetAllBids(ctx, id)
	if int32(len(bids)) != accepted.Load() {
		t.Errorf("expected %d bids in history, got %d", accepted.Load(), len(bids))
	}
	for i := 1; i < len(bids); i++ {
		if bids[i].Price <= bids[i-1].Price {
			t.Fatalf("history not strictly increasing at %d: %d <= %d", i, bids[i].Price, bids[i-1].Price)
		}
	}
	if bids[len(bids)-1].Price != uint64(totalBidders*10) {
		t.Errorf("expected final price %d, got %d", totalBidders*10, bids[len(bids)-1].Price)
	}
}

func TestCloseAuction_Unauthorized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("rug"), time.Minute)

	if err := env.svc.CloseAuction(ctx, id, "mallory"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got: %v", err)
	}

	a, _ := env.svc.GetAuction(ctx, id)
	if !a.IsActive() {
		t.Error("expected auction to stay active")
	}
}

func TestCloseAuction_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("lamp"), time.Minute)

	for i := 0; i < 3; i++ {
		if err := env.svc.CloseAuction(ctx, id, DefaultSystemPrincipal); err != nil {
			t.Fatalf("close %d failed: %v", i, err)
		}
	}
	env.scheduler.fireAll()

	a, _ := env.svc.GetAuction(ctx, id)
	if a.IsActive() {
		t.Error("expected auction ended")
	}

	closedEvents := 0
	for len(env.svc.EventQueue()) > 0 {
		if ev := <-env.svc.EventQueue(); ev.Type == domain.AuctionEventClosed {
			closedEvents++
		}
	}
	if closedEvents != 1 {
		t.Errorf("expected exactly 1 closed event, got %d", closedEvents)
	}
}

func TestCloseAuction_UnknownIsNoop(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.CloseAuction(context.Background(), 123, DefaultSystemPrincipal); err != nil {
		t.Errorf("expected nil for unknown auction, got: %v", err)
	}
}

func TestCloseAuction_CustomSystemPrincipal(t *testing.T) {
	repo := storage.NewMemoryAdapter(0)
	svc := NewAuctionService(repo, &fakeScheduler{}, 10,
		WithSystemPrincipal("ledger"),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer svc.Shutdown()
	ctx := context.Background()

	id, _ := svc.CreateAuction(ctx, testItem("clock"), time.Minute)

	if err := svc.CloseAuction(ctx, id, DefaultSystemPrincipal); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for default principal, got: %v", err)
	}
	if err := svc.CloseAuction(ctx, id, "ledger"); err != nil {
		t.Errorf("expected close by ledger to succeed, got: %v", err)
	}
}

func TestResume_RearmsActiveAndClosesExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	expired, _ := env.svc.CreateAuction(ctx, testItem("old"), 10*time.Second)
	live, _ := env.svc.CreateAuction(ctx, testItem("new"), 100*time.Second)
	done, _ := env.svc.CreateAuction(ctx, testItem("done"), time.Second)
	env.svc.CloseAuction(ctx, done, DefaultSystemPrincipal)

	// simulate a restart: timers armed before are lost
	restarted := &fakeScheduler{}
	svc := NewAuctionService(env.repo, restarted, 10,
		WithClock(env.clock.Now),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer svc.Shutdown()

	env.clock.Advance(30 * time.Second)
	armed, err := svc.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if armed != 1 {
		t.Errorf("expected 1 re-armed timer, got %d", armed)
	}
	if restarted.pending[0].delay != 70*time.Second {
		t.Errorf("expected 70s remaining, got %v", restarted.pending[0].delay)
	}

	a, _ := svc.GetAuction(ctx, expired)
	if a.IsActive() {
		t.Error("expected expired auction to be closed on resume")
	}

	restarted.fireAll()
	a, _ = svc.GetAuction(ctx, live)
	if a.IsActive() {
		t.Error("expected live auction closed after re-armed timer fired")
	}
}

func TestEvents_Emitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, _ := env.svc.CreateAuction(ctx, testItem("drum"), time.Minute)
	env.svc.SubmitBid(ctx, id, 10, "alice")
	env.svc.SubmitBid(ctx, id, 5, "bob")
	env.scheduler.fireAll()

	want := []domain.AuctionEventType{
		domain.AuctionEventCreated,
		domain.AuctionEventBidAccepted,
		domain.AuctionEventClosed,
	}
	for _, w := range want {
		ev := <-env.svc.EventQueue()
		if ev.Type != w {
			t.Errorf("expected %s, got %s", w, ev.Type)
		}
		if ev.AuctionID != id || ev.ID == "" {
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if len(env.svc.EventQueue()) != 0 {
		t.Errorf("expected no more events, got %d", len(env.svc.EventQueue()))
	}
}

func TestEvents_DroppedAfterShutdown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.svc.Shutdown()
	if _, err := env.svc.CreateAuction(ctx, testItem("late"), time.Minute); err != nil {
		t.Fatalf("create after shutdown failed: %v", err)
	}
	if _, ok := <-env.svc.EventQueue(); ok {
		t.Error("expected closed event queue")
	}
}
