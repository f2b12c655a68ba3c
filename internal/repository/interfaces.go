// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"

	"github.com/jnst/certificate-issuance/internal/db"
	"github.com/jnst/certificate-issuance/internal/model"
)

// IssuanceRepository defines methods for issuance data access.
//
// Uniqueness of (participant name, event name, email) is enforced by the repository
// itself, so concurrent batches sharing a store never create duplicate issuances.
type IssuanceRepository interface {
	// Acquire checks the store is reachable and returns a session scoped to one batch.
	Acquire(ctx context.Context) (IssuanceSession, error)
	GetByKey(ctx context.Context, participantName, eventName, email string) (*model.IssuanceRecord, error)
	ListByEvent(ctx context.Context, eventName string, limit int) ([]*model.IssuanceRecord, error)
}

// IssuanceSession persists issuances for the duration of a batch.
type IssuanceSession interface {
	// Persist stores fact once; repeated calls for the same key return the existing id.
	Persist(ctx context.Context, fact model.IssuanceFact) (model.PersistResult, error)
	Release()
}

// OutboxRepository defines methods for outbox event data access.
type OutboxRepository interface {
	CreateEvent(ctx context.Context, params *model.CreateOutboxEventParams) (*model.OutboxEvent, error)
	GetUnpublishedEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkAsPublished(ctx context.Context, id int64) error
}

// TransactionManager defines methods for database transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, q *db.Queries) error) error
}
