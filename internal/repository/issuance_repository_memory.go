package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jnst/certificate-issuance/internal/model"
)

type issuanceKey struct {
	participantName string
	eventName       string
	email           string
}

func keyOf(participantName, eventName, email string) issuanceKey {
	return issuanceKey{participantName: participantName, eventName: eventName, email: strings.ToLower(email)}
}

// IssuanceRepositoryMemory keeps issuances in memory with the same uniqueness rule as PostgreSQL.
// It backs dry runs and tests.
type IssuanceRepositoryMemory struct {
	mu      sync.RWMutex
	nextID  model.StoredID
	byKey   map[issuanceKey]*model.IssuanceRecord
	outbox  []*model.CreateOutboxEventParams
	holders int
}

// NewIssuanceRepositoryMemory creates an empty in-memory repository.
func NewIssuanceRepositoryMemory() *IssuanceRepositoryMemory {
	return &IssuanceRepositoryMemory{byKey: make(map[issuanceKey]*model.IssuanceRecord)}
}

// Acquire returns a session; ActiveSessions counts sessions not yet released.
func (r *IssuanceRepositoryMemory) Acquire(_ context.Context) (IssuanceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.holders++

	return &memoryIssuanceSession{repo: r}, nil
}

// ActiveSessions reports how many acquired sessions are still held.
func (r *IssuanceRepositoryMemory) ActiveSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.holders
}

// GetByKey retrieves the issuance for a participant and event.
func (r *IssuanceRepositoryMemory) GetByKey(
	_ context.Context, participantName, eventName, email string,
) (*model.IssuanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byKey[keyOf(participantName, eventName, email)]
	if !ok {
		return nil, model.ErrIssuanceNotFound
	}

	cp := *rec

	return &cp, nil
}

// ListByEvent retrieves issuances for an event in insertion order.
func (r *IssuanceRepositoryMemory) ListByEvent(
	_ context.Context, eventName string, limit int,
) ([]*model.IssuanceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.IssuanceRecord

	for _, rec := range r.byKey {
		if rec.EventName == eventName {
			cp := *rec
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// OutboxEvents returns the certificate_issued events recorded so far.
func (r *IssuanceRepositoryMemory) OutboxEvents() []*model.CreateOutboxEventParams {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]*model.CreateOutboxEventParams(nil), r.outbox...)
}

func (r *IssuanceRepositoryMemory) persist(ctx context.Context, fact model.IssuanceFact) (model.PersistResult, error) {
	if err := ctx.Err(); err != nil {
		return model.PersistResult{}, classifyStoreError("persist", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(fact.ParticipantName, fact.EventName, fact.Email)
	if existing, ok := r.byKey[key]; ok {
		return model.PersistResult{ID: existing.ID}, nil
	}

	r.nextID++
	rec := &model.IssuanceRecord{
		ID:              r.nextID,
		ParticipantName: fact.ParticipantName,
		EventName:       fact.EventName,
		Email:           fact.Email,
		EventDate:       fact.EventDate,
		DocumentID:      fact.DocumentID.String(),
		IssuedAt:        fact.IssuedAt,
	}

	params, err := model.NewCertificateIssuedEvent(*rec)
	if err != nil {
		return model.PersistResult{}, classifyStoreError("persist", err)
	}

	r.byKey[key] = rec
	r.outbox = append(r.outbox, params)

	return model.PersistResult{ID: rec.ID, Created: true}, nil
}

type memoryIssuanceSession struct {
	repo *IssuanceRepositoryMemory
	once sync.Once
}

func (s *memoryIssuanceSession) Persist(ctx context.Context, fact model.IssuanceFact) (model.PersistResult, error) {
	return s.repo.persist(ctx, fact)
}

func (s *memoryIssuanceSession) Release() {
	s.once.Do(func() {
		s.repo.mu.Lock()
		defer s.repo.mu.Unlock()

		s.repo.holders--
	})
}
