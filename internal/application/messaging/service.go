// Package messaging holds the HTTP-facing send and subscription-check operations.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/otp-relay/internal/application/session"
	"github.com/otp-relay/internal/domain"
	"github.com/otp-relay/internal/pkg/phone"
)

type channel interface {
	Snapshot() session.Snapshot
	ResolveRecipient(ctx context.Context, canonical string) (string, error)
	Send(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error)
}

type gate interface {
	IsSubscribed(ctx context.Context, phone string) bool
}

type Service interface {
	SendMessage(ctx context.Context, number, text string) (*domain.DeliveryReceipt, error)
	SendNotification(ctx context.Context, phone, text string) (*domain.DeliveryReceipt, error)
	CheckSubscription(ctx context.Context, phone string) (canonical string, subscribed bool, err error)
}

type ServiceDeps struct {
	OTP           channel // may be nil when the channel is not configured
	Notifications channel
	Gate          gate
	Phones        phone.Normalizer
}

type service struct {
	otp    channel
	notif  channel
	gate   gate
	phones phone.Normalizer
}

func NewService(deps ServiceDeps) Service {
	return &service{otp: deps.OTP, notif: deps.Notifications, gate: deps.Gate, phones: deps.Phones}
}

func (s *service) SendMessage(ctx context.Context, number, text string) (*domain.DeliveryReceipt, error) {
	canonical, err := s.input(number, text)
	if err != nil {
		return nil, err
	}
	if err := ready(s.otp); err != nil {
		return nil, err
	}
	return deliver(ctx, s.otp, canonical, text)
}

// SendNotification checks the subscription after readiness and before
// resolution; an unsubscribed recipient is never contacted.
func (s *service) SendNotification(ctx context.Context, p, text string) (*domain.DeliveryReceipt, error) {
	canonical, err := s.input(p, text)
	if err != nil {
		return nil, err
	}
	if err := ready(s.notif); err != nil {
		return nil, err
	}
	if !s.gate.IsSubscribed(ctx, canonical) {
		return nil, fmt.Errorf("%s is not subscribed to notifications: %w", canonical, domain.ErrForbidden)
	}
	return deliver(ctx, s.notif, canonical, text)
}

func (s *service) CheckSubscription(ctx context.Context, p string) (string, bool, error) {
	canonical := s.phones.Normalize(p)
	if !s.phones.Valid(canonical) {
		return "", false, fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
	}
	return canonical, s.gate.IsSubscribed(ctx, canonical), nil
}

func (s *service) input(p, text string) (string, error) {
	if strings.TrimSpace(p) == "" || strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("number and message are required: %w", domain.ErrBadRequest)
	}
	canonical := s.phones.Normalize(p)
	if !s.phones.Valid(canonical) {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
	}
	return canonical, nil
}

func ready(ch channel) error {
	if ch == nil || !ch.Snapshot().Ready() {
		return fmt.Errorf("messaging session not ready: %w", domain.ErrUnavailable)
	}
	return nil
}

func deliver(ctx context.Context, ch channel, canonical, text string) (*domain.DeliveryReceipt, error) {
	to, err := ch.ResolveRecipient(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return ch.Send(ctx, to, text)
}
