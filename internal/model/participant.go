// Package model defines domain models and data structures.
package model

import (
	"strconv"
	"time"
)

// RawRow is one decoded roster row keyed by its header cell, as read from the spreadsheet.
type RawRow struct {
	// Line is the 1-based row number in the source sheet; zero when unknown.
	Line   int
	Fields map[string]string
}

// Identity returns a short label for logs and reports before the row is validated.
func (r RawRow) Identity() string {
	if r.Line > 0 {
		return "row " + strconv.Itoa(r.Line)
	}

	return "row"
}

// ParticipantRecord represents a fully validated roster row.
type ParticipantRecord struct {
	FullName  string    `json:"full_name"`
	EventName string    `json:"event_name"`
	Email     string    `json:"email"`
	EventDate time.Time `json:"event_date"`
}

// Identity returns the label used for the record in run reports.
func (p ParticipantRecord) Identity() string {
	return p.Email
}

// Fact returns the issuance fact persisted for the record.
func (p ParticipantRecord) Fact(issuedAt time.Time) IssuanceFact {
	return IssuanceFact{
		ParticipantName: p.FullName,
		EventName:       p.EventName,
		Email:           p.Email,
		EventDate:       p.EventDate,
		IssuedAt:        issuedAt,
	}
}
