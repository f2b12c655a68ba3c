// Package service provides business logic layer implementations.
package service

import (
	"context"

	"github.com/jnst/certificate-issuance/internal/model"
	"github.com/jnst/certificate-issuance/internal/render"
)

// BatchService runs the issuance pipeline over a roster.
type BatchService interface {
	// Run normalizes, renders, persists and delivers each row and reports every dispatched row in input order.
	// It returns an error only when a shared resource cannot be acquired, before any row is processed.
	Run(ctx context.Context, rows []model.RawRow, tmpl render.CertificateTemplate, cfg model.BatchConfig) (*model.RunReport, error)
}

// OutboxService defines business logic methods for outbox event processing.
type OutboxService interface {
	ProcessUnpublishedEvents(ctx context.Context, limit int) (int, error)
}

// DocumentSink receives every rendered certificate, for example to keep a local copy.
type DocumentSink interface {
	Put(ctx context.Context, doc model.CertificateDocument) error
}
