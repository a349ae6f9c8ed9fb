package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/auction-ledger/internal/core/domain"
)

const redisChannelPrefix = "auction_events:"

// RedisPublisher publishes events to the Pub/Sub channel auction_events:{auctionID}.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func redisChannel(id domain.AuctionID) string {
	return fmt.Sprintf("%s%d", redisChannelPrefix, id)
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, redisChannel(event.AuctionID), data).Err()
}
