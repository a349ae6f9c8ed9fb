package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/auction-ledger/internal/adapter/scheduler"
	"github.com/rl1809/auction-ledger/internal/adapter/storage"
	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/core/service"
	"github.com/rl1809/auction-ledger/internal/port"
)

const (
	bidders       = 50
	bidsPerBidder = 20
	queueSize     = 100000
)

func main() {
	redisAddr := flag.String("redis", "", "run against the Redis store at this address instead of memory")
	flag.Parse()

	ctx := context.Background()

	var repo port.AuctionRepository = storage.NewMemoryAdapter(storage.DefaultMaxRecordSize * 100)
	if *redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		defer rdb.Close()
		repo = storage.NewRedisAdapter(rdb, storage.DefaultMaxRecordSize*100)
	}

	timers := scheduler.NewTimerScheduler()
	defer timers.Stop()

	auctionService := service.NewAuctionService(repo, timers, queueSize,
		service.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer auctionService.Shutdown()

	// Drain the event queue in background
	go func() {
		for range auctionService.EventQueue() {
		}
	}()

	id, err := auctionService.CreateAuction(ctx, domain.Item{Title: "stress"}, time.Hour)
	if err != nil {
		log.Fatalf("failed to create auction: %v", err)
	}

	// Counters
	var accepted atomic.Int32
	var tooLow atomic.Int32
	var failed atomic.Int32

	// Every bidder walks its own ladder of prices; ladders interleave so
	// most bids race against a higher one.
	var wg sync.WaitGroup
	start := time.Now()

	for b := 0; b < bidders; b++ {
		wg.Add(1)
		go func(bidder int) {
			defer wg.Done()

			originator := domain.Principal(fmt.Sprintf("bidder-%d", bidder))
			for i := 0; i < bidsPerBidder; i++ {
				price := uint64(i*bidders + bidder + 1)
				err := auctionService.SubmitBid(ctx, id, price, originator)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, domain.ErrBidTooLow):
					tooLow.Add(1)
				default:
					failed.Add(1)
				}
			}
		}(b)
	}

	wg.Wait()
	elapsed := time.Since(start)

	bids, err := auctionService.GetAllBids(ctx, id)
	if err != nil {
		log.Fatalf("failed to read bids: %v", err)
	}
	highest, err := auctionService.GetHighestBid(ctx, id)
	if err != nil {
		log.Fatalf("failed to read highest bid: %v", err)
	}

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Total Bids:       %d\n", bidders*bidsPerBidder)
	fmt.Printf("Accepted:         %d\n", accepted.Load())
	fmt.Printf("Too Low:          %d\n", tooLow.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Printf("History Length:   %d\n", len(bids))
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if int(accepted.Load()) == len(bids) {
		fmt.Println("PASS: every accepted bid is in the history")
	} else {
		fmt.Printf("FAIL: %d accepted but history has %d bids\n", accepted.Load(), len(bids))
	}

	increasing := true
	for i := 1; i < len(bids); i++ {
		if bids[i].Price <= bids[i-1].Price {
			increasing = false
			fmt.Printf("FAIL: bid %d (%d) does not beat bid %d (%d)\n", i, bids[i].Price, i-1, bids[i-1].Price)
			break
		}
	}
	if increasing {
		fmt.Println("PASS: bid history is strictly increasing")
	}

	top := uint64(bidders * bidsPerBidder)
	if highest != nil && highest.Price == top {
		fmt.Printf("PASS: highest bid is %d\n", top)
	} else {
		fmt.Printf("FAIL: expected highest bid %d, got %+v\n", top, highest)
	}
}
