package sms

import "context"

// SendResult holds the outcome of a successful carrier Send call.
type SendResult struct {
	// MessageSID is the carrier's message identifier. It is empty when the
	// carrier accepted the message but the response body could not be parsed.
	MessageSID string
}

// Provider sends an SMS to a phone number.
type Provider interface {
	Send(ctx context.Context, to, body string) (*SendResult, error)
}
