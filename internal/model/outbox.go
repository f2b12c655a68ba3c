package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutboxEvent is a pending notification about an issuance, relayed to the event stream.
type OutboxEvent struct {
	ID          int64      `json:"id"`
	AggregateID string     `json:"aggregate_id"`
	EventType   string     `json:"event_type"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at"`
}

// CreateOutboxEventParams represents parameters for creating a new outbox event.
type CreateOutboxEventParams struct {
	AggregateID string
	EventType   string
	Payload     []byte
}

// IssuanceAggregateID names the outbox aggregate for an issuance.
func IssuanceAggregateID(id StoredID) string {
	return fmt.Sprintf("issuance_%d", id)
}

// NewCertificateIssuedEvent builds the outbox row written alongside a new issuance.
func NewCertificateIssuedEvent(record IssuanceRecord) (*CreateOutboxEventParams, error) {
	payload, err := json.Marshal(CertificateIssuedEvent{
		IssuanceID:      record.ID,
		ParticipantName: record.ParticipantName,
		EventName:       record.EventName,
		Email:           record.Email,
		DocumentID:      record.DocumentID,
		IssuedAt:        record.IssuedAt,
		Action:          EventActionCertificateIssued,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &CreateOutboxEventParams{
		AggregateID: IssuanceAggregateID(record.ID),
		EventType:   string(EventActionCertificateIssued),
		Payload:     payload,
	}, nil
}
