package domain

import "time"

// OTP delivery outcomes written back to the users collection.
const (
	OTPStatusSent               = "sent"
	OTPStatusFailedNotOnNetwork = "failed_not_on_network"
)

// OTPRecord is the slice of a users document the dispatcher reads and marks.
// The document is owned by an external writer; absence of otp_sent means not yet sent.
type OTPRecord struct {
	Phone     string     `json:"phone" dynamodbav:"phone"`
	OTP       *string    `json:"otp" dynamodbav:"otp"`
	OTPSent   bool       `json:"otp_sent" dynamodbav:"otp_sent"`
	OTPStatus string     `json:"otp_status,omitempty" dynamodbav:"otp_status,omitempty"`
	OTPSentAt *time.Time `json:"otp_sent_at,omitempty" dynamodbav:"otp_sent_at,omitempty"`
}

// Pending reports whether the record carries an OTP that has not been dispatched.
func (r OTPRecord) Pending() bool {
	return r.OTP != nil && *r.OTP != "" && !r.OTPSent
}

// OTPAttempt is one dispatch attempt, appended to the otp_logs collection.
type OTPAttempt struct {
	AttemptID string    `json:"id" dynamodbav:"attempt_id"`
	Channel   string    `json:"channel" dynamodbav:"channel"`
	Phone     string    `json:"phone" dynamodbav:"phone"`
	Canonical string    `json:"canonical" dynamodbav:"canonical"`
	Status    string    `json:"status" dynamodbav:"status"` // sent | failed_not_on_network | error
	MessageID string    `json:"message_id,omitempty" dynamodbav:"message_id,omitempty"`
	Error     string    `json:"error,omitempty" dynamodbav:"error,omitempty"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

// OTPOutcome is the event published after a record is marked.
type OTPOutcome struct {
	Phone     string    `json:"phone"`
	Canonical string    `json:"canonical"`
	Status    string    `json:"status"`
	MessageID string    `json:"message_id,omitempty"`
	At        time.Time `json:"at"`
}
