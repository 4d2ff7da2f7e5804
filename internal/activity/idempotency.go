package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which events have already been applied
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark returns false when another consumer marked the event first.
	Mark(ctx context.Context, eventID string) (bool, error)
}

type redisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper keeps one key per event for ttl (24h when zero), which
// bounds how late a redelivery can still be recognised.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) Deduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisDeduper{rdb: rdb, ttl: ttl}
}

func seenKey(eventID string) string { return "activity:seen:" + eventID }

func (d *redisDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.rdb.Exists(ctx, seenKey(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (d *redisDeduper) Mark(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, seenKey(eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, err)
	}
	return ok, nil
}
