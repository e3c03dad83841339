package domain

import "time"

// Logical messaging channels.
const (
	ChannelOTP           = "otp"
	ChannelNotifications = "notifications"
)

// InboundMessage is a text message received on a channel.
// From is the routable chat identifier replies go to; Sender is the raw
// author identifier reported by the transport.
type InboundMessage struct {
	Channel    string
	From       string
	Sender     string
	Text       string
	ReceivedAt time.Time
}

// DeliveryReceipt identifies a message accepted by the transport.
type DeliveryReceipt struct {
	MessageID string    `json:"id"`
	To        string    `json:"to"`
	SentAt    time.Time `json:"sent_at"`
}

// SessionEvents receives lifecycle and inbound-message events from a transport.
type SessionEvents interface {
	HandleQR(code string)
	HandleAuthenticated()
	HandleReady()
	HandleDisconnected(reason string)
	HandleMessage(msg InboundMessage)
}
