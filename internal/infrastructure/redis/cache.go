package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "subscription:"

type kv interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
}

// SubscriptionCache stores gate decisions as "1"/"0" under subscription:<phone>.
// Redis errors degrade to a cache miss; they never decide the gate.
type SubscriptionCache struct {
	rdb kv
	ttl time.Duration
	log *slog.Logger
}

func NewSubscriptionCache(rdb kv, ttl time.Duration, log *slog.Logger) *SubscriptionCache {
	if log == nil {
		log = slog.Default()
	}
	return &SubscriptionCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *SubscriptionCache) Get(ctx context.Context, phone string) (bool, bool) {
	v, err := c.rdb.Get(ctx, keyPrefix+phone).Result()
	if errors.Is(err, goredis.Nil) {
		return false, false
	}
	if err != nil {
		c.log.Warn("redis cache read failed", "phone", phone, "err", err)
		return false, false
	}
	switch v {
	case "1":
		return true, true
	case "0":
		return false, true
	}
	return false, false
}

func (c *SubscriptionCache) Set(ctx context.Context, phone string, subscribed bool) {
	v := "0"
	if subscribed {
		v = "1"
	}
	// A zero ttl keeps the key without expiry.
	if err := c.rdb.Set(ctx, keyPrefix+phone, v, c.ttl).Err(); err != nil {
		c.log.Warn("redis cache write failed", "phone", phone, "err", err)
	}
}
