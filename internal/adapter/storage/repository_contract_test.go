package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/auction-ledger/internal/core/domain"
	"github.com/rl1809/auction-ledger/internal/port"
)

// testRecordSize keeps records small enough that oversized images are cheap to build.
const testRecordSize = 2048

func newTestAuction(title string) func(id domain.AuctionID) domain.Auction {
	return func(id domain.AuctionID) domain.Auction {
		return domain.Auction{
			ID:         id,
			Item:       domain.Item{Title: title, Description: "desc", Image: []byte{1, 2, 3}},
			BidHistory: []domain.Bid{},
			EndTime:    time.Unix(1700000000, 0).UTC(),
			Duration:   time.Minute,
			State:      domain.AuctionStateActive,
		}
	}
}

func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) port.AuctionRepository) {
	t.Run("CreateAssignsSequentialIDs", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for want := domain.AuctionID(0); want < 3; want++ {
			a, err := repo.Create(ctx, newTestAuction("item"))
			require.NoError(t, err)
			assert.Equal(t, want, a.ID)
		}

		n, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("GetRoundTrip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, newTestAuction("lamp"))
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "lamp", got.Item.Title)
		assert.Equal(t, []byte{1, 2, 3}, got.Item.Image)
		assert.True(t, got.EndTime.Equal(created.EndTime))
		assert.Equal(t, domain.AuctionStateActive, got.State)
		assert.Empty(t, got.BidHistory)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		repo := newRepo(t)

		got, err := repo.Get(context.Background(), 42)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("UpdatePersists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, newTestAuction("chair"))
		require.NoError(t, err)

		err = repo.Update(ctx, created.ID, func(a *domain.Auction) error {
			a.BidHistory = append(a.BidHistory, domain.Bid{Price: 10, Originator: "alice"})
			return nil
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		require.Len(t, got.BidHistory, 1)
		assert.Equal(t, uint64(10), got.BidHistory[0].Price)
		assert.Equal(t, domain.Principal("alice"), got.BidHistory[0].Originator)
	})

	t.Run("UpdateErrorLeavesRecordUnchanged", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, newTestAuction("desk"))
		require.NoError(t, err)

		boom := errors.New("boom")
		err = repo.Update(ctx, created.ID, func(a *domain.Auction) error {
			a.State = domain.AuctionStateEnded
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.AuctionStateActive, got.State)
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		repo := newRepo(t)

		err := repo.Update(context.Background(), 7, func(a *domain.Auction) error { return nil })
		assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
	})

	t.Run("OversizedCreateDoesNotConsumeID", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Create(ctx, func(id domain.AuctionID) domain.Auction {
			a := newTestAuction("huge")(id)
			a.Item.Image = make([]byte, testRecordSize)
			return a
		})
		assert.ErrorIs(t, err, ErrRecordTooLarge)

		a, err := repo.Create(ctx, newTestAuction("small"))
		require.NoError(t, err)
		assert.Equal(t, domain.AuctionID(0), a.ID)
	})

	t.Run("OversizedUpdateRejected", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Create(ctx, newTestAuction("vase"))
		require.NoError(t, err)

		err = repo.Update(ctx, created.ID, func(a *domain.Auction) error {
			a.Item.Description = strings.Repeat("x", testRecordSize)
			return nil
		})
		assert.ErrorIs(t, err, ErrRecordTooLarge)

		got, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "desc", got.Item.Description)
	})

	t.Run("ListInIDOrder", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		titles := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
		for _, title := range titles {
			_, err := repo.Create(ctx, newTestAuction(title))
			require.NoError(t, err)
		}

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, len(titles))
		for i, a := range list {
			assert.Equal(t, domain.AuctionID(i), a.ID)
			assert.Equal(t, titles[i], a.Item.Title)
		}
	})
}
