package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/rueidis"

	"github.com/jnst/certificate-issuance/internal/model"
)

const redisBlockTimeout = 1000 // milliseconds

// IssuedHandler reacts to a certificate_issued event read from the stream.
type IssuedHandler func(ctx context.Context, event *model.CertificateIssuedEvent) error

// EventConsumerImpl reads certificate events from a Redis stream through a consumer group.
type EventConsumerImpl struct {
	redisClient rueidis.Client
	stream      string
	group       string
	consumer    string
	onIssued    IssuedHandler
	logger      *slog.Logger
}

// NewEventConsumerImpl creates a consumer for stream as member consumer of group.
func NewEventConsumerImpl(
	redisClient rueidis.Client,
	stream, group, consumer string,
	onIssued IssuedHandler,
	logger *slog.Logger,
) *EventConsumerImpl {
	if stream == "" {
		stream = DefaultEventStream
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &EventConsumerImpl{
		redisClient: redisClient,
		stream:      stream,
		group:       group,
		consumer:    consumer,
		onIssued:    onIssued,
		logger:      logger,
	}
}

// EnsureGroup creates the consumer group, ignoring the error when it already exists.
func (c *EventConsumerImpl) EnsureGroup(ctx context.Context) {
	cmd := c.redisClient.B().XgroupCreate().Key(c.stream).Group(c.group).Id("0").Mkstream().Build()
	if err := c.redisClient.Do(ctx, cmd).Error(); err != nil {
		c.logger.InfoContext(ctx, "consumer group creation result (may already exist)", slog.String("error", err.Error()))
	}
}

// ConsumeOnce reads one batch of new messages, handles them and acknowledges the ones handled.
func (c *EventConsumerImpl) ConsumeOnce(ctx context.Context) error {
	cmd := c.redisClient.B().Xreadgroup().Group(c.group, c.consumer).
		Count(10).
		Block(redisBlockTimeout).
		Streams().
		Key(c.stream).
		Id(">").
		Build()

	streams, err := c.redisClient.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil
		}

		return err
	}

	for _, messages := range streams {
		for _, message := range messages {
			if err := c.HandleMessage(ctx, message); err != nil {
				c.logger.ErrorContext(ctx, "failed to process message",
					slog.String("message_id", message.ID), slog.String("error", err.Error()))

				continue
			}

			c.acknowledge(ctx, message.ID)
		}
	}

	return nil
}

// HandleMessage decodes one stream entry and dispatches it by event type. Unknown types are skipped.
func (c *EventConsumerImpl) HandleMessage(ctx context.Context, message rueidis.XRangeEntry) error {
	eventType, ok := message.FieldValues["event_type"]
	if !ok {
		return errors.New("missing event_type in message")
	}

	payload, ok := message.FieldValues["payload"]
	if !ok {
		return errors.New("missing payload in message")
	}

	switch model.EventAction(eventType) {
	case model.EventActionCertificateIssued:
		var event model.CertificateIssuedEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}

		return c.onIssued(ctx, &event)
	default:
		c.logger.WarnContext(ctx, "unknown event type", slog.String("event_type", eventType))
		return nil
	}
}

func (c *EventConsumerImpl) acknowledge(ctx context.Context, messageID string) {
	cmd := c.redisClient.B().Xack().Key(c.stream).Group(c.group).Id(messageID).Build()
	if err := c.redisClient.Do(ctx, cmd).Error(); err != nil {
		c.logger.ErrorContext(ctx, "failed to ACK message",
			slog.String("message_id", messageID), slog.String("error", err.Error()))
	}
}
