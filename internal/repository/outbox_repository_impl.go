package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/certificate-issuance/internal/db"
	"github.com/jnst/certificate-issuance/internal/model"
)

// OutboxRepositoryImpl implements OutboxRepository using PostgreSQL.
type OutboxRepositoryImpl struct {
	db *db.Queries
}

// NewOutboxRepositoryImpl creates a new OutboxRepository implementation.
func NewOutboxRepositoryImpl(pool *pgxpool.Pool) OutboxRepository {
	return &OutboxRepositoryImpl{db: db.New(pool)}
}

// CreateEvent creates a new outbox event outside any issuance transaction.
func (r *OutboxRepositoryImpl) CreateEvent(
	ctx context.Context, params *model.CreateOutboxEventParams,
) (*model.OutboxEvent, error) {
	return createOutboxEvent(ctx, r.db, params)
}

// GetUnpublishedEvents retrieves unpublished outbox events, oldest first.
func (r *OutboxRepositoryImpl) GetUnpublishedEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	dbEvents, err := r.db.GetUnpublishedEvents(ctx, int32(limit))
	if err != nil {
		return nil, err
	}

	events := make([]*model.OutboxEvent, len(dbEvents))
	for i, dbEvent := range dbEvents {
		events[i] = toOutboxEvent(dbEvent)
	}

	return events, nil
}

// MarkAsPublished marks an outbox event as published.
func (r *OutboxRepositoryImpl) MarkAsPublished(ctx context.Context, id int64) error {
	return r.db.MarkEventAsPublished(ctx, id)
}

func createOutboxEvent(
	ctx context.Context, q *db.Queries, params *model.CreateOutboxEventParams,
) (*model.OutboxEvent, error) {
	dbEvent, err := q.CreateOutboxEvent(ctx, &db.CreateOutboxEventParams{
		AggregateID: params.AggregateID,
		EventType:   params.EventType,
		Payload:     params.Payload,
	})
	if err != nil {
		return nil, err
	}

	return toOutboxEvent(dbEvent), nil
}

func toOutboxEvent(dbEvent db.OutboxEvent) *model.OutboxEvent {
	var publishedAt *time.Time
	if dbEvent.PublishedAt.Valid {
		publishedAt = &dbEvent.PublishedAt.Time
	}

	return &model.OutboxEvent{
		ID:          dbEvent.ID,
		AggregateID: dbEvent.AggregateID,
		EventType:   dbEvent.EventType,
		Payload:     dbEvent.Payload,
		CreatedAt:   dbEvent.CreatedAt.Time,
		PublishedAt: publishedAt,
	}
}
