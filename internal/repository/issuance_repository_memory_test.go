package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jnst/certificate-issuance/internal/model"
)

type MemoryIssuanceSuite struct {
	suite.Suite
	repo    *IssuanceRepositoryMemory
	session IssuanceSession
	ctx     context.Context
}

func TestMemoryIssuanceSuite(t *testing.T) {
	suite.Run(t, new(MemoryIssuanceSuite))
}

func (s *MemoryIssuanceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = NewIssuanceRepositoryMemory()

	session, err := s.repo.Acquire(s.ctx)
	s.Require().NoError(err)
	s.session = session
}

func (s *MemoryIssuanceSuite) TearDownTest() {
	s.session.Release()
}

func fact(name, event, email string) model.IssuanceFact {
	rec := model.ParticipantRecord{
		FullName:  name,
		EventName: event,
		Email:     email,
		EventDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC),
	}
	f := rec.Fact(time.Date(2024, time.May, 2, 10, 0, 0, 0, time.UTC))
	f.DocumentID = model.NewDocumentID(rec, "test")

	return f
}

// TestPersistIsIdempotent verifies the same fact is stored exactly once.
func (s *MemoryIssuanceSuite) TestPersistIsIdempotent() {
	first, err := s.session.Persist(s.ctx, fact("Ann", "Hack24", "a@x.com"))
	s.Require().NoError(err)
	s.True(first.Created)

	second, err := s.session.Persist(s.ctx, fact("Ann", "Hack24", "A@X.com"))
	s.Require().NoError(err)
	s.False(second.Created)
	s.Equal(first.ID, second.ID)

	records, err := s.repo.ListByEvent(s.ctx, "Hack24", 0)
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Len(s.repo.OutboxEvents(), 1)
}

// TestConcurrentPersistCreatesOneRecord verifies uniqueness under concurrent writers.
func (s *MemoryIssuanceSuite) TestConcurrentPersistCreatesOneRecord() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := s.session.Persist(s.ctx, fact("Ann", "Hack24", "a@x.com"))
			s.NoError(err)

			if res.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	s.Equal(1, created)
}

// TestDistinctKeys verifies different participants and events get separate records.
func (s *MemoryIssuanceSuite) TestDistinctKeys() {
	for _, f := range []model.IssuanceFact{
		fact("Ann", "Hack24", "a@x.com"),
		fact("Ann", "Hack25", "a@x.com"),
		fact("Bob", "Hack24", "a@x.com"),
	} {
		res, err := s.session.Persist(s.ctx, f)
		s.Require().NoError(err)
		s.True(res.Created)
	}

	s.Run("lists by event in insertion order", func() {
		records, err := s.repo.ListByEvent(s.ctx, "Hack24", 10)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal("Ann", records[0].ParticipantName)
		s.Equal("Bob", records[1].ParticipantName)
	})

	s.Run("finds by key", func() {
		rec, err := s.repo.GetByKey(s.ctx, "Ann", "Hack25", "a@x.com")
		s.Require().NoError(err)
		s.Equal("Hack25", rec.EventName)
	})

	s.Run("returns not found for unknown key", func() {
		_, err := s.repo.GetByKey(s.ctx, "Zed", "Hack24", "z@x.com")
		s.Require().ErrorIs(err, model.ErrIssuanceNotFound)
	})
}

// TestPersistHonorsCancellation verifies a cancelled context is reported as a store error.
func (s *MemoryIssuanceSuite) TestPersistHonorsCancellation() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.session.Persist(ctx, fact("Ann", "Hack24", "a@x.com"))

	var storeErr *model.StoreError
	s.Require().ErrorAs(err, &storeErr)
	s.False(storeErr.Systemic)
}

// TestReleaseIsScoped verifies sessions are counted until released once.
func (s *MemoryIssuanceSuite) TestReleaseIsScoped() {
	s.Equal(1, s.repo.ActiveSessions())

	other, err := s.repo.Acquire(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, s.repo.ActiveSessions())

	other.Release()
	other.Release()
	s.Equal(1, s.repo.ActiveSessions())
}
