// Package whatsapp adapts a whatsmeow client to the session transport
// contract. Each channel keeps its device credentials in its own sqlite file.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/otp-relay/internal/domain"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

// Client is one channel's connection to the messaging network.
type Client struct {
	path string
	log  *slog.Logger

	mu        sync.Mutex
	container *sqlstore.Container
	device    *store.Device
	cli       *whatsmeow.Client
	events    domain.SessionEvents
}

// NewClient prepares a transport backed by the sqlite file at path. Nothing is
// opened until first use.
func NewClient(path string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{path: path, log: log.With("transport", "whatsapp", "db", filepath.Base(path))}
}

func (c *Client) openLocked(ctx context.Context) error {
	if c.container != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on", c.path)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, newLogger(c.log, "store"))
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	c.container = container
	return nil
}

func (c *Client) deviceLocked(ctx context.Context) (*store.Device, error) {
	if c.device != nil {
		return c.device, nil
	}
	dev, err := c.loadDeviceLocked(ctx)
	if err == nil || ctx.Err() != nil {
		return dev, err
	}
	if _, statErr := os.Stat(c.path); statErr != nil {
		return nil, err
	}
	// A store that cannot be read never recovers on retry; move it aside and pair anew.
	if qerr := c.quarantineLocked(); qerr != nil {
		return nil, errors.Join(err, qerr)
	}
	c.log.Warn("unreadable session store moved aside; pairing required", "err", err)
	return c.loadDeviceLocked(ctx)
}

func (c *Client) loadDeviceLocked(ctx context.Context) (*store.Device, error) {
	if err := c.openLocked(ctx); err != nil {
		return nil, err
	}
	dev, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	c.device = dev
	return dev, nil
}

// quarantineLocked renames the store and its sqlite side files out of the way.
func (c *Client) quarantineLocked() error {
	if c.container != nil {
		_ = c.container.Close()
		c.container = nil
	}
	suffix := ".corrupt-" + time.Now().UTC().Format("20060102T150405")
	for _, ext := range []string{"", "-journal", "-wal", "-shm"} {
		err := os.Rename(c.path+ext, c.path+suffix+ext)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("quarantine session store: %w", err)
		}
	}
	return nil
}

// HasCredentials reports whether a paired device is stored.
func (c *Client) HasCredentials(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	dev, err := c.deviceLocked(ctx)
	if err != nil {
		c.log.Warn("credential check failed", "err", err)
		return false
	}
	return dev.ID != nil
}

// Start connects and reports lifecycle through ev. Without a paired device it
// streams pairing codes until one is scanned or the codes run out.
func (c *Client) Start(ctx context.Context, ev domain.SessionEvents) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dev, err := c.deviceLocked(ctx)
	if err != nil {
		return err
	}
	if c.cli == nil {
		c.cli = whatsmeow.NewClient(dev, newLogger(c.log, "client"))
		// Reconnects are owned by the session channel.
		c.cli.EnableAutoReconnect = false
		c.cli.AddEventHandler(c.handleEvent)
	}
	c.events = ev
	if c.cli.IsConnected() {
		c.cli.Disconnect()
	}

	if c.cli.Store.ID == nil {
		qr, err := c.cli.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("pairing channel: %w", err)
		}
		go c.pump(qr, ev)
	}
	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (c *Client) pump(qr <-chan whatsmeow.QRChannelItem, ev domain.SessionEvents) {
	for item := range qr {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			ev.HandleQR(item.Code)
		case whatsmeow.QRChannelSuccess.Event:
			// PairSuccess arrives through the event handler.
		case whatsmeow.QRChannelTimeout.Event:
			ev.HandleDisconnected("pairing timed out")
		default:
			c.log.Warn("pairing event", "event", item.Event, "err", item.Error)
		}
	}
}

func (c *Client) handleEvent(evt interface{}) {
	c.mu.Lock()
	ev := c.events
	c.mu.Unlock()
	if ev == nil {
		return
	}
	switch e := evt.(type) {
	case *events.PairSuccess:
		ev.HandleAuthenticated()
	case *events.Connected:
		ev.HandleAuthenticated()
		ev.HandleReady()
	case *events.Disconnected:
		ev.HandleDisconnected("connection lost")
	case *events.StreamReplaced:
		ev.HandleDisconnected("session opened elsewhere")
	case *events.LoggedOut:
		c.forget()
		ev.HandleDisconnected(fmt.Sprintf("logged out: %s", e.Reason.String()))
	case *events.Message:
		if msg, ok := inbound(e); ok {
			// Handlers may send replies; keep the event loop free.
			go ev.HandleMessage(msg)
		}
	}
}

// forget drops the revoked device so the next Start pairs a fresh one.
func (c *Client) forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		if err := c.device.Delete(context.Background()); err != nil {
			c.log.Warn("delete revoked device failed", "err", err)
		}
	}
	c.device = nil
	c.cli = nil
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
	if c.cli != nil {
		c.cli.Disconnect()
	}
}

func (c *Client) client() (*whatsmeow.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cli == nil || !c.cli.IsConnected() {
		return nil, fmt.Errorf("whatsapp client not connected: %w", domain.ErrUnavailable)
	}
	return c.cli, nil
}

// ResolveRecipient returns the routable JID for a canonical phone, or
// domain.ErrNotOnNetwork when the number has no account.
func (c *Client) ResolveRecipient(ctx context.Context, canonical string) (string, error) {
	cli, err := c.client()
	if err != nil {
		return "", err
	}
	resp, err := cli.IsOnWhatsApp(ctx, []string{"+" + canonical})
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", canonical, err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return "", fmt.Errorf("%s: %w", canonical, domain.ErrNotOnNetwork)
	}
	return resp[0].JID.String(), nil
}

func (c *Client) SendText(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error) {
	cli, err := c.client()
	if err != nil {
		return nil, err
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return nil, fmt.Errorf("recipient %q: %w", to, domain.ErrBadRequest)
	}
	resp, err := cli.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return nil, fmt.Errorf("send to %s: %w", jid, err)
	}
	return &domain.DeliveryReceipt{MessageID: resp.ID, To: jid.String(), SentAt: resp.Timestamp}, nil
}

// ContactNumber maps an inbound sender to its phone number. Privacy-relay
// (LID) senders are looked up in the device's LID mapping.
func (c *Client) ContactNumber(ctx context.Context, senderID string) (string, error) {
	jid, err := types.ParseJID(senderID)
	if err != nil {
		return "", err
	}
	if jid.Server != types.HiddenUserServer {
		return jid.User, nil
	}
	cli, err := c.client()
	if err != nil {
		return "", err
	}
	pn, err := cli.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil {
		return "", err
	}
	if pn.IsEmpty() {
		return "", errors.New("no phone number known for " + senderID)
	}
	return pn.User, nil
}

// inbound extracts a direct text message; group chats and own messages are skipped.
func inbound(e *events.Message) (domain.InboundMessage, bool) {
	if e.Info.IsFromMe || e.Info.IsGroup {
		return domain.InboundMessage{}, false
	}
	text := strings.TrimSpace(messageText(e.Message))
	if text == "" {
		return domain.InboundMessage{}, false
	}
	return domain.InboundMessage{
		From:       e.Info.Chat.String(),
		Sender:     e.Info.Sender.ToNonAD().String(),
		Text:       text,
		ReceivedAt: e.Info.Timestamp,
	}, true
}

func messageText(m *waE2E.Message) string {
	if m == nil {
		return ""
	}
	if t := m.GetConversation(); t != "" {
		return t
	}
	return m.GetExtendedTextMessage().GetText()
}
