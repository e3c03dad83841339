// Package redis backs the subscription cache with a shared Redis instance so
// several processes (API, otpctl) see the same gate decisions.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/otp-relay/internal/config"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects and pings Redis. Callers fall back to the in-process
// cache when it returns an error.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
