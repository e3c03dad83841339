// Package command turns inbound chat keywords into subscription changes.
package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/otp-relay/internal/config"
	"github.com/otp-relay/internal/domain"
)

type action int

const (
	actionNone action = iota
	actionSubscribe
	actionUnsubscribe
	actionHelp
)

type gate interface {
	Subscribe(ctx context.Context, phone, senderID string) error
	Unsubscribe(ctx context.Context, phone string) error
}

type channel interface {
	Send(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error)
	ContactNumber(ctx context.Context, senderID string) (string, error)
}

// Listener matches whole trimmed messages, case-insensitively, against the
// configured keyword sets. Anything else is ignored.
type Listener struct {
	gate     gate
	channel  channel
	keywords map[string]action
	replies  config.Replies
	timeout  time.Duration
	log      *slog.Logger
}

func NewListener(g gate, ch channel, cmds config.Commands, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	l := &Listener{
		gate:     g,
		channel:  ch,
		keywords: make(map[string]action),
		replies:  cmds.Replies,
		timeout:  30 * time.Second,
		log:      log.With("component", "command"),
	}
	l.add(actionSubscribe, cmds.Subscribe)
	l.add(actionUnsubscribe, cmds.Unsubscribe)
	l.add(actionHelp, cmds.Help)
	return l
}

func (l *Listener) add(a action, words []string) {
	for _, w := range words {
		if k := normalizeKeyword(w); k != "" {
			l.keywords[k] = a
		}
	}
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// HandlerFunc adapts the listener to a channel's inbound message hook.
func (l *Listener) HandlerFunc(ctx context.Context) func(domain.InboundMessage) {
	return func(msg domain.InboundMessage) {
		l.Handle(ctx, msg)
	}
}

func (l *Listener) Handle(ctx context.Context, msg domain.InboundMessage) {
	a := l.keywords[normalizeKeyword(msg.Text)]
	if a == actionNone {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	switch a {
	case actionHelp:
		l.reply(ctx, msg.From, l.replies.Help)
	case actionSubscribe:
		p := l.contact(ctx, msg.Sender)
		if err := l.gate.Subscribe(ctx, p, msg.Sender); err != nil {
			l.log.Error("subscribe command failed", "sender", msg.Sender, "err", err)
			l.reply(ctx, msg.From, l.replies.Failure)
			return
		}
		l.reply(ctx, msg.From, l.replies.Subscribed)
	case actionUnsubscribe:
		p := l.contact(ctx, msg.Sender)
		if err := l.gate.Unsubscribe(ctx, p); err != nil {
			l.log.Error("unsubscribe command failed", "sender", msg.Sender, "err", err)
			l.reply(ctx, msg.From, l.replies.Failure)
			return
		}
		l.reply(ctx, msg.From, l.replies.Unsubscribed)
	}
}

// contact prefers the sender's underlying phone number and falls back to the
// raw identifier.
func (l *Listener) contact(ctx context.Context, sender string) string {
	n, err := l.channel.ContactNumber(ctx, sender)
	if err != nil || n == "" {
		l.log.Debug("contact lookup failed, using sender id", "sender", sender, "err", err)
		return sender
	}
	return n
}

// reply is best-effort.
func (l *Listener) reply(ctx context.Context, to, text string) {
	if text == "" {
		return
	}
	if _, err := l.channel.Send(ctx, to, text); err != nil {
		l.log.Warn("command reply failed", "to", to, "err", err)
	}
}
