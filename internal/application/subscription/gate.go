// Package subscription decides whether a phone has opted in to notifications.
// Decisions are fail-closed: any store error reads as "not subscribed".
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-relay/internal/domain"
	"github.com/otp-relay/internal/pkg/phone"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldWhatsappID     = "whatsappId"
	fieldSubscribed     = "subscribed"
	fieldSubscribedAt   = "subscribedAt"
	fieldUnsubscribedAt = "unsubscribedAt"
	fieldUpdatedAt      = "updatedAt"
)

type subscriptionStore interface {
	Get(ctx context.Context, phone string) (*domain.Subscription, error)
	Upsert(ctx context.Context, phone string, updates map[string]interface{}) error
	Count(ctx context.Context, onlySubscribed bool) (int, error)
}

// Cache holds resolved gate decisions. A miss (ok == false) falls through to the store.
type Cache interface {
	Get(ctx context.Context, phone string) (subscribed, ok bool)
	Set(ctx context.Context, phone string, subscribed bool)
}

// sizer is implemented by caches that can report their entry count.
type sizer interface {
	Len() int
}

type Gate struct {
	store  subscriptionStore
	cache  Cache
	phones phone.Normalizer
	log    *slog.Logger
	now    func() time.Time
}

func NewGate(store subscriptionStore, cache Cache, phones phone.Normalizer, log *slog.Logger) *Gate {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{store: store, cache: cache, phones: phones, log: log, now: time.Now}
}

// Subscribe opts phone in. senderID is the raw channel-specific identifier the
// request arrived from and is recorded when non-empty.
func (g *Gate) Subscribe(ctx context.Context, raw, senderID string) error {
	p, err := g.canonical(raw)
	if err != nil {
		return err
	}
	now := g.now().UTC()
	updates := map[string]interface{}{
		fieldSubscribed:   true,
		fieldSubscribedAt: now,
		fieldUpdatedAt:    now,
	}
	if senderID != "" {
		updates[fieldWhatsappID] = senderID
	}
	if err := g.store.Upsert(ctx, p, updates); err != nil {
		return fmt.Errorf("subscribe %s: %w", p, err)
	}
	g.cache.Set(ctx, p, true)
	g.log.Info("subscribed", "phone", p)
	return nil
}

func (g *Gate) Unsubscribe(ctx context.Context, raw string) error {
	p, err := g.canonical(raw)
	if err != nil {
		return err
	}
	now := g.now().UTC()
	err = g.store.Upsert(ctx, p, map[string]interface{}{
		fieldSubscribed:     false,
		fieldUnsubscribedAt: now,
		fieldUpdatedAt:      now,
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", p, err)
	}
	g.cache.Set(ctx, p, false)
	g.log.Info("unsubscribed", "phone", p)
	return nil
}

// IsSubscribed never returns an error; a missing record or a store failure resolves to false.
func (g *Gate) IsSubscribed(ctx context.Context, raw string) bool {
	p, err := g.canonical(raw)
	if err != nil {
		return false
	}
	if v, ok := g.cache.Get(ctx, p); ok {
		return v
	}
	sub, err := g.store.Get(ctx, p)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		g.cache.Set(ctx, p, false)
		return false
	case err != nil:
		// Not cached, so the next read retries the store.
		g.log.Warn("subscription lookup failed", "phone", p, "err", err)
		return false
	}
	g.cache.Set(ctx, p, sub.Subscribed)
	return sub.Subscribed
}

// Lookup returns the stored subscription without consulting the cache.
func (g *Gate) Lookup(ctx context.Context, raw string) (*domain.Subscription, error) {
	p, err := g.canonical(raw)
	if err != nil {
		return nil, err
	}
	return g.store.Get(ctx, p)
}

func (g *Gate) Stats(ctx context.Context) (*domain.SubscriptionStats, error) {
	total, err := g.store.Count(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("count subscriptions: %w", err)
	}
	subscribed, err := g.store.Count(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("count subscribed: %w", err)
	}
	st := &domain.SubscriptionStats{
		Total:        total,
		Subscribed:   subscribed,
		Unsubscribed: total - subscribed,
	}
	if sz, ok := g.cache.(sizer); ok {
		st.CacheSize = sz.Len()
	}
	return st, nil
}

// Canonical exposes the gate's normalizer so callers report the same key the gate uses.
func (g *Gate) Canonical(raw string) string {
	return g.phones.Normalize(raw)
}

func (g *Gate) canonical(raw string) (string, error) {
	p := g.phones.Normalize(raw)
	if !g.phones.Valid(p) {
		return "", fmt.Errorf("invalid phone %q: %w", raw, domain.ErrBadRequest)
	}
	return p, nil
}
