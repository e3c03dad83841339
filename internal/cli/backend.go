// Package cli holds the operator commands of otpctl.
package cli

import (
	"context"
	"log/slog"

	"github.com/otp-relay/internal/application/subscription"
	"github.com/otp-relay/internal/config"
	"github.com/otp-relay/internal/domain"
	"github.com/otp-relay/internal/infrastructure/dynamo"
	redisinfra "github.com/otp-relay/internal/infrastructure/redis"
	"github.com/otp-relay/internal/pkg/phone"
)

// Gate is the subscription surface the commands drive.
type Gate interface {
	Subscribe(ctx context.Context, raw, senderID string) error
	Unsubscribe(ctx context.Context, raw string) error
	Lookup(ctx context.Context, raw string) (*domain.Subscription, error)
	Stats(ctx context.Context) (*domain.SubscriptionStats, error)
	Canonical(raw string) string
}

type PendingLister interface {
	ListPending(ctx context.Context) ([]domain.OTPRecord, error)
}

// Backend is what a command runs against.
type Backend struct {
	Gate Gate
	OTPs PendingLister
}

// Loader builds the backend lazily so --help never touches the network.
type Loader func(ctx context.Context) (*Backend, error)

// NewLoader returns a Loader over the configured DynamoDB tables. It shares
// the server's Redis cache when one is configured so writes made here are
// seen by the running dispatcher.
func NewLoader(cfg *config.Config, log *slog.Logger) Loader {
	return func(ctx context.Context) (*Backend, error) {
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		var cache subscription.Cache = subscription.NewMemoryCache(0)
		if cfg.RedisAddr != "" {
			if rdb, err := redisinfra.NewClient(ctx, cfg); err == nil {
				cache = redisinfra.NewSubscriptionCache(rdb, cfg.SubscriptionCacheTTL, log)
			} else {
				log.Warn("redis unavailable, server cache may be stale", "err", err)
			}
		}
		phones := phone.Normalizer{Prefix: cfg.CountryPrefix}
		return &Backend{
			Gate: subscription.NewGate(dynamo.NewSubscriptionRepo(client, cfg.DynamoTables.Subscriptions), cache, phones, log),
			OTPs: dynamo.NewOTPRepo(client, cfg.DynamoTables.Users),
		}, nil
	}
}
