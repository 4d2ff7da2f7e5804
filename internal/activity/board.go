package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultBoardKey = "trending:items"

// Board ranks items by accumulated engagement
type Board interface {
	Add(ctx context.Context, itemID string, delta float64) error
	Top(ctx context.Context, n int) ([]Score, error)
}

type redisBoard struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisBoard keeps the board in one sorted set. The set expires ttl after
// the last event so an idle board decays to empty; zero keeps it forever.
func NewRedisBoard(rdb *redis.Client, key string, ttl time.Duration) Board {
	if key == "" {
		key = defaultBoardKey
	}
	return &redisBoard{rdb: rdb, key: key, ttl: ttl}
}

func (b *redisBoard) Add(ctx context.Context, itemID string, delta float64) error {
	_, err := b.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, b.key, delta, itemID)
		// items that lost all engagement drop off
		pipe.ZRemRangeByScore(ctx, b.key, "-inf", "0")
		if b.ttl > 0 {
			pipe.Expire(ctx, b.key, b.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update trending board: %w", err)
	}
	return nil
}

func (b *redisBoard) Top(ctx context.Context, n int) ([]Score, error) {
	if n <= 0 {
		return []Score{}, nil
	}
	zs, err := b.rdb.ZRevRangeWithScores(ctx, b.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read trending board: %w", err)
	}
	out := make([]Score, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Score{ItemID: id, Score: z.Score})
	}
	return out, nil
}
