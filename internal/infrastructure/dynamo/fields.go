package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldPhone          = "phone"
	fieldOTP            = "otp"
	fieldOTPSent        = "otp_sent"
	fieldOTPStatus      = "otp_status"
	fieldOTPSentAt      = "otp_sent_at"
	fieldWhatsappID     = "whatsappId"
	fieldSubscribed     = "subscribed"
	fieldSubscribedAt   = "subscribedAt"
	fieldUnsubscribedAt = "unsubscribedAt"
	fieldUpdatedAt      = "updatedAt"
	fieldAttemptID      = "attempt_id"
	fieldCreatedAt      = "created_at"
)
