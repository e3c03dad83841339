// Package session models one messaging session per logical channel as a
// state machine and exposes readiness-checked resolve and send.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/otp-relay/internal/domain"
)

type State int

const (
	Disconnected State = iota
	AwaitingPairing
	Authenticated
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingPairing:
		return "awaiting_pairing"
	case Authenticated:
		return "authenticated"
	case Ready:
		return "ready"
	default:
		return "disconnected"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a consistent read of a channel's state.
type Snapshot struct {
	Channel      string    `json:"channel"`
	State        State     `json:"state"`
	PairingToken string    `json:"-"`
	Since        time.Time `json:"since"`
}

func (s Snapshot) Ready() bool { return s.State == Ready }

// Transport is the messaging network client behind a channel. Start must
// report lifecycle changes through events; it may return before the session
// is ready.
type Transport interface {
	Start(ctx context.Context, events domain.SessionEvents) error
	Disconnect()
	HasCredentials(ctx context.Context) bool
	ResolveRecipient(ctx context.Context, canonical string) (string, error)
	SendText(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error)
	ContactNumber(ctx context.Context, senderID string) (string, error)
}

type notifier interface {
	Notify(ctx context.Context, subject, body string)
}

type timer interface {
	Stop() bool
}

type ChannelOptions struct {
	ReconnectDelay time.Duration
	Alerts         notifier
	Logger         *slog.Logger
}

// Channel drives one Transport through Disconnected, AwaitingPairing,
// Authenticated and Ready, and reconnects after transport loss.
type Channel struct {
	name      string
	transport Transport
	delay     time.Duration
	alerts    notifier
	log       *slog.Logger
	afterFunc func(time.Duration, func()) timer
	now       func() time.Time

	mu           sync.Mutex
	ctx          context.Context
	state        State
	token        string
	since        time.Time
	reconnecting bool
	pending      timer
	stopped      bool
	pairAlerted  bool
	onMessage    func(domain.InboundMessage)
}

func NewChannel(name string, t Transport, opts ChannelOptions) *Channel {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Channel{
		name:      name,
		transport: t,
		delay:     opts.ReconnectDelay,
		alerts:    opts.Alerts,
		log:       log.With("channel", name),
		afterFunc: func(d time.Duration, f func()) timer { return time.AfterFunc(d, f) },
		now:       time.Now,
		ctx:       context.Background(),
		since:     time.Now(),
	}
}

func (c *Channel) Name() string { return c.name }

// OnMessage registers the inbound text handler. It runs on the transport's
// event goroutine.
func (c *Channel) OnMessage(h func(domain.InboundMessage)) {
	c.mu.Lock()
	c.onMessage = h
	c.mu.Unlock()
}

func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Channel: c.name, State: c.state, PairingToken: c.token, Since: c.since}
}

// Start connects the transport. Without stored credentials the channel waits
// for pairing; otherwise it resumes silently and stays Disconnected until the
// transport reports progress. A start failure schedules a reconnect.
func (c *Channel) Start(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.mu.Unlock()
	c.connect()
}

func (c *Channel) connect() {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	if !c.transport.HasCredentials(ctx) {
		c.setState(AwaitingPairing, "")
		c.log.Info("no stored credentials, waiting for pairing")
	} else {
		c.log.Info("resuming session")
	}
	if err := c.transport.Start(ctx, c); err != nil {
		c.log.Error("session start failed", "err", err)
		c.scheduleReconnect()
	}
}

func (c *Channel) HandleQR(code string) {
	c.mu.Lock()
	c.setStateLocked(AwaitingPairing, code)
	alert := !c.pairAlerted
	c.pairAlerted = true
	ctx := c.ctx
	c.mu.Unlock()

	c.log.Info("pairing token issued")
	if alert {
		c.notify(ctx, fmt.Sprintf("[%s] pairing required", c.name),
			fmt.Sprintf("Channel %s has no valid session. Open /qr/%s and scan the code.", c.name, c.name))
	}
}

func (c *Channel) HandleAuthenticated() {
	c.setState(Authenticated, "")
	c.log.Info("authenticated")
}

func (c *Channel) HandleReady() {
	c.mu.Lock()
	c.setStateLocked(Ready, "")
	c.pairAlerted = false
	c.mu.Unlock()
	c.log.Info("session ready")
}

func (c *Channel) HandleDisconnected(reason string) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(Disconnected, "")
	ctx := c.ctx
	c.mu.Unlock()

	c.log.Warn("session disconnected", "reason", reason)
	c.notify(ctx, fmt.Sprintf("[%s] session disconnected", c.name),
		fmt.Sprintf("Channel %s disconnected (%s). Reconnecting in %s.", c.name, reason, c.delay))
	c.scheduleReconnect()
}

func (c *Channel) HandleMessage(msg domain.InboundMessage) {
	c.mu.Lock()
	h := c.onMessage
	c.mu.Unlock()
	if h == nil {
		return
	}
	msg.Channel = c.name
	h(msg)
}

// ResolveRecipient maps a canonical phone to a routable identifier.
// Returns domain.ErrUnavailable unless the channel is Ready.
func (c *Channel) ResolveRecipient(ctx context.Context, canonical string) (string, error) {
	if !c.Snapshot().Ready() {
		return "", fmt.Errorf("%s channel not ready: %w", c.name, domain.ErrUnavailable)
	}
	return c.transport.ResolveRecipient(ctx, canonical)
}

// Send delivers text once. There is no retry here; callers own redelivery.
func (c *Channel) Send(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error) {
	if !c.Snapshot().Ready() {
		return nil, fmt.Errorf("%s channel not ready: %w", c.name, domain.ErrUnavailable)
	}
	return c.transport.SendText(ctx, to, text)
}

func (c *Channel) ContactNumber(ctx context.Context, senderID string) (string, error) {
	return c.transport.ContactNumber(ctx, senderID)
}

// Stop cancels a pending reconnect and disconnects the transport.
func (c *Channel) Stop() {
	c.mu.Lock()
	c.stopped = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.reconnecting = false
	c.setStateLocked(Disconnected, "")
	c.mu.Unlock()
	c.transport.Disconnect()
}

// scheduleReconnect arms at most one reconnect at a time.
func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.reconnecting {
		return
	}
	c.reconnecting = true
	c.pending = c.afterFunc(c.delay, func() {
		c.mu.Lock()
		c.reconnecting = false
		c.pending = nil
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}
		c.log.Info("reconnecting")
		c.connect()
	})
}

func (c *Channel) setState(s State, token string) {
	c.mu.Lock()
	c.setStateLocked(s, token)
	c.mu.Unlock()
}

func (c *Channel) setStateLocked(s State, token string) {
	if c.state != s {
		c.since = c.now()
	}
	c.state = s
	c.token = token
}

func (c *Channel) notify(ctx context.Context, subject, body string) {
	if c.alerts == nil {
		return
	}
	go c.alerts.Notify(context.WithoutCancel(ctx), subject, body)
}
