package model

import "time"

// Message is the email sent with a certificate.
type Message struct {
	From    string
	Subject string
	Body    string
}

// DeliveryResult describes an accepted delivery.
type DeliveryResult struct {
	Provider   string    `json:"provider"`
	MessageID  string    `json:"message_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}
