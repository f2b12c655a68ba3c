package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jnst/certificate-issuance/internal/db"
	"github.com/jnst/certificate-issuance/internal/model"
)

// IssuanceRepositoryImpl implements IssuanceRepository using PostgreSQL.
// New issuances and their certificate_issued outbox events are written in one transaction.
type IssuanceRepositoryImpl struct {
	db        *db.Queries
	pool      *pgxpool.Pool
	txManager TransactionManager
}

// NewIssuanceRepositoryImpl creates a new IssuanceRepository implementation.
func NewIssuanceRepositoryImpl(pool *pgxpool.Pool) *IssuanceRepositoryImpl {
	return &IssuanceRepositoryImpl{
		db:        db.New(pool),
		pool:      pool,
		txManager: NewTransactionManagerImpl(pool),
	}
}

// Acquire pings the database so an unreachable store fails the batch before any record is processed.
func (r *IssuanceRepositoryImpl) Acquire(ctx context.Context) (IssuanceSession, error) {
	if err := r.pool.Ping(ctx); err != nil {
		return nil, classifyStoreError("acquire", err)
	}

	return &pgIssuanceSession{repo: r}, nil
}

// GetByKey retrieves the issuance for a participant and event.
func (r *IssuanceRepositoryImpl) GetByKey(
	ctx context.Context, participantName, eventName, email string,
) (*model.IssuanceRecord, error) {
	row, err := r.db.GetIssuanceByKey(ctx, &db.GetIssuanceByKeyParams{
		ParticipantName: participantName,
		EventName:       eventName,
		Email:           email,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrIssuanceNotFound
	}

	if err != nil {
		return nil, classifyStoreError("get", err)
	}

	return toIssuanceRecord(row), nil
}

// ListByEvent retrieves issuances for an event in insertion order.
func (r *IssuanceRepositoryImpl) ListByEvent(
	ctx context.Context, eventName string, limit int,
) ([]*model.IssuanceRecord, error) {
	rows, err := r.db.ListIssuancesByEvent(ctx, &db.ListIssuancesByEventParams{
		EventName: eventName,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, classifyStoreError("list", err)
	}

	records := make([]*model.IssuanceRecord, len(rows))
	for i, row := range rows {
		records[i] = toIssuanceRecord(row)
	}

	return records, nil
}

func (r *IssuanceRepositoryImpl) persist(ctx context.Context, fact model.IssuanceFact) (model.PersistResult, error) {
	var result model.PersistResult

	err := r.txManager.WithTransaction(ctx, func(ctx context.Context, q *db.Queries) error {
		row, err := q.InsertIssuance(ctx, &db.InsertIssuanceParams{
			ParticipantName: fact.ParticipantName,
			EventName:       fact.EventName,
			Email:           fact.Email,
			EventDate:       pgtype.Date{Time: fact.EventDate, Valid: true},
			DocumentID:      pgtype.UUID{Bytes: uuid.UUID(fact.DocumentID), Valid: true},
			IssuedAt:        pgtype.Timestamptz{Time: fact.IssuedAt, Valid: true},
		})
		if errors.Is(err, pgx.ErrNoRows) {
			existing, err := q.GetIssuanceByKey(ctx, &db.GetIssuanceByKeyParams{
				ParticipantName: fact.ParticipantName,
				EventName:       fact.EventName,
				Email:           fact.Email,
			})
			if err != nil {
				return fmt.Errorf("failed to load existing issuance: %w", err)
			}

			result = model.PersistResult{ID: model.StoredID(existing.ID)}

			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to insert issuance: %w", err)
		}

		params, err := model.NewCertificateIssuedEvent(*toIssuanceRecord(row))
		if err != nil {
			return err
		}

		if _, err := createOutboxEvent(ctx, q, params); err != nil {
			return fmt.Errorf("failed to create outbox event: %w", err)
		}

		result = model.PersistResult{ID: model.StoredID(row.ID), Created: true}

		return nil
	})
	if err != nil {
		return model.PersistResult{}, classifyStoreError("persist", err)
	}

	return result, nil
}

type pgIssuanceSession struct {
	repo *IssuanceRepositoryImpl
}

func (s *pgIssuanceSession) Persist(ctx context.Context, fact model.IssuanceFact) (model.PersistResult, error) {
	return s.repo.persist(ctx, fact)
}

// Release is a no-op; the pool outlives batches and is closed by its owner.
func (*pgIssuanceSession) Release() {}

func toIssuanceRecord(row db.Issuance) *model.IssuanceRecord {
	documentID := ""
	if row.DocumentID.Valid {
		documentID = uuid.UUID(row.DocumentID.Bytes).String()
	}

	return &model.IssuanceRecord{
		ID:              model.StoredID(row.ID),
		ParticipantName: row.ParticipantName,
		EventName:       row.EventName,
		Email:           row.Email,
		EventDate:       row.EventDate.Time,
		DocumentID:      documentID,
		IssuedAt:        row.IssuedAt.Time,
	}
}
