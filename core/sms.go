package core

import "context"

// MaxSmsLength is the character budget of a single SMS.
const MaxSmsLength = 160

type (
	SmsMessage struct {
		To   string // E.164 phone number
		Body string
	}

	// SmsReceipt is what the gateway answered for an accepted message.
	SmsReceipt struct {
		Provider  string
		MessageID string
	}

	// SmsSender is any service that can deliver text messages.
	// Failures are returned to the caller and never retried by the sender.
	SmsSender interface {
		Send(ctx context.Context, msg SmsMessage) (SmsReceipt, error)
	}
)
