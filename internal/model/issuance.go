package model

import "time"

// StoredID is the identifier assigned by the issuance store.
type StoredID int64

// IssuanceFact is what the pipeline asks the store to persist.
type IssuanceFact struct {
	ParticipantName string
	EventName       string
	Email           string
	EventDate       time.Time
	DocumentID      DocumentID
	IssuedAt        time.Time
}

// IssuanceRecord represents a persisted issuance.
type IssuanceRecord struct {
	ID              StoredID  `json:"id"`
	ParticipantName string    `json:"participant_name"`
	EventName       string    `json:"event_name"`
	Email           string    `json:"email"`
	EventDate       time.Time `json:"event_date"`
	DocumentID      string    `json:"document_id"`
	IssuedAt        time.Time `json:"issued_at"`
}

// PersistResult reports the outcome of an idempotent persist.
type PersistResult struct {
	ID StoredID
	// Created is false when an issuance for the same participant, event and email already existed.
	Created bool
}

// EventAction represents the type of event action.
type EventAction string

const (
	// EventActionCertificateIssued is recorded in the outbox when an issuance is first stored.
	EventActionCertificateIssued EventAction = "certificate_issued"
)

// CertificateIssuedEvent represents the payload for certificate issuance events.
type CertificateIssuedEvent struct {
	IssuanceID      StoredID    `json:"issuance_id"`
	ParticipantName string      `json:"participant_name"`
	EventName       string      `json:"event_name"`
	Email           string      `json:"email"`
	DocumentID      string      `json:"document_id"`
	IssuedAt        time.Time   `json:"issued_at"`
	Action          EventAction `json:"action"`
}
