package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

const (
	auctionKeyPrefix = "auction:"
	auctionIndexKey  = "auctions:index"
	auctionSeqKey    = "auctions:seq"
	maxTxRetries     = 32
)

var ErrTooManyConflicts = errors.New("too many concurrent writers")

// RedisAdapter keeps each record under its own key plus a sorted set of IDs
// for ordered iteration. Writes use WATCH/MULTI and retry on conflict.
type RedisAdapter struct {
	client *redis.Client
	codec  recordCodec
}

func NewRedisAdapter(client *redis.Client, maxRecordSize int) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		codec:  newRecordCodec(maxRecordSize),
	}
}

func auctionKey(id domain.AuctionID) string {
	return auctionKeyPrefix + strconv.FormatUint(uint64(id), 10)
}

// indexMember is zero padded so lexical order in the index equals ID order.
func indexMember(id domain.AuctionID) string {
	return fmt.Sprintf("%020d", uint64(id))
}

func (r *RedisAdapter) Create(ctx context.Context, build func(id domain.AuctionID) domain.Auction) (domain.Auction, error) {
	var created domain.Auction

	txf := func(tx *redis.Tx) error {
		next, err := tx.Get(ctx, auctionSeqKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read auction sequence: %w", err)
		}

		id := domain.AuctionID(next)
		a := build(id)
		a.ID = id

		data, err := r.codec.encode(a)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, auctionKey(id), data, 0)
			pipe.ZAdd(ctx, auctionIndexKey, redis.Z{Score: 0, Member: indexMember(id)})
			pipe.Set(ctx, auctionSeqKey, next+1, 0)
			return nil
		})
		if err != nil {
			return err
		}
		created = a
		return nil
	}

	if err := r.watchRetry(ctx, txf, auctionSeqKey); err != nil {
		return domain.Auction{}, err
	}
	return created.Clone(), nil
}

func (r *RedisAdapter) Get(ctx context.Context, id domain.AuctionID) (*domain.Auction, error) {
	data, err := r.client.Get(ctx, auctionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return r.codec.decode(data)
}

func (r *RedisAdapter) Update(ctx context.Context, id domain.AuctionID, fn func(*domain.Auction) error) error {
	key := auctionKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrAuctionNotFound
		}
		if err != nil {
			return fmt.Errorf("get auction: %w", err)
		}

		a, err := r.codec.decode(data)
		if err != nil {
			return err
		}
		if err := fn(a); err != nil {
			return err
		}

		updated, err := r.codec.encode(*a)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	return r.watchRetry(ctx, txf, key)
}

func (r *RedisAdapter) List(ctx context.Context) ([]domain.Auction, error) {
	members, err := r.client.ZRange(ctx, auctionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read auction index: %w", err)
	}
	if len(members) == 0 {
		return []domain.Auction{}, nil
	}

	keys := make([]string, len(members))
	for i, m := range members {
		id, err := strconv.ParseUint(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad index member %q: %w", m, err)
		}
		keys[i] = auctionKey(domain.AuctionID(id))
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read auctions: %w", err)
	}

	out := make([]domain.Auction, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		a, err := r.codec.decode([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *RedisAdapter) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, auctionIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count auctions: %w", err)
	}
	return int(n), nil
}

// watchRetry runs txf under WATCH and retries when another client changed
// the watched keys before EXEC.
func (r *RedisAdapter) watchRetry(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrTooManyConflicts
}
