package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/jnst/certificate-issuance/internal/repository"
)

// DefaultEventStream is the Redis stream certificate events are relayed to.
const DefaultEventStream = "certificate:events"

// OutboxServiceImpl implements OutboxService for processing outbox events.
type OutboxServiceImpl struct {
	outboxRepo  repository.OutboxRepository
	redisClient rueidis.Client
	stream      string
	logger      *slog.Logger
}

// NewOutboxServiceImpl creates a new OutboxService implementation.
func NewOutboxServiceImpl(
	outboxRepo repository.OutboxRepository,
	redisClient rueidis.Client,
	stream string,
	logger *slog.Logger,
) OutboxService {
	if stream == "" {
		stream = DefaultEventStream
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &OutboxServiceImpl{
		outboxRepo:  outboxRepo,
		redisClient: redisClient,
		stream:      stream,
		logger:      logger,
	}
}

// ProcessUnpublishedEvents relays up to limit unpublished events and returns how many were published.
// An event that cannot be relayed stays unpublished and is retried on the next poll.
func (s *OutboxServiceImpl) ProcessUnpublishedEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.outboxRepo.GetUnpublishedEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	published := 0

	for _, event := range events {
		cmd := s.redisClient.B().Xadd().Key(s.stream).Id("*").
			FieldValue().FieldValue("event_type", event.EventType).
			FieldValue("aggregate_id", event.AggregateID).
			FieldValue("event_id", strconv.FormatInt(event.ID, 10)).
			FieldValue("payload", string(event.Payload)).
			Build()

		if err := s.redisClient.Do(ctx, cmd).Error(); err != nil {
			s.logger.WarnContext(ctx, "failed to publish event",
				slog.Int64("event_id", event.ID), slog.Any("error", err))

			continue
		}

		if err := s.outboxRepo.MarkAsPublished(ctx, event.ID); err != nil {
			s.logger.WarnContext(ctx, "failed to mark event as published",
				slog.Int64("event_id", event.ID), slog.Any("error", err))

			continue
		}

		published++

		s.logger.DebugContext(ctx, "published event",
			slog.Int64("event_id", event.ID), slog.String("stream", s.stream))
	}

	return published, nil
}
