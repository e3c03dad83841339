package domain

import "time"

// Subscription is a notification opt-in keyed by canonical phone.
// WhatsappID is the channel-specific sender identifier, which may differ from
// the phone (privacy-relay identifiers).
type Subscription struct {
	Phone          string     `json:"phone" dynamodbav:"phone"`
	WhatsappID     string     `json:"whatsappId,omitempty" dynamodbav:"whatsappId,omitempty"`
	Subscribed     bool       `json:"subscribed" dynamodbav:"subscribed"`
	SubscribedAt   *time.Time `json:"subscribedAt,omitempty" dynamodbav:"subscribedAt,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribedAt,omitempty" dynamodbav:"unsubscribedAt,omitempty"`
	UpdatedAt      time.Time  `json:"updatedAt" dynamodbav:"updatedAt"`
}

type SubscriptionStats struct {
	Total        int `json:"total"`
	Subscribed   int `json:"subscribed"`
	Unsubscribed int `json:"unsubscribed"`
	CacheSize    int `json:"cacheSize"`
}
