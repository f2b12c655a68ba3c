// Package main provides the audit consumer that records certificate issuance events from Redis Streams.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"

	"github.com/jnst/certificate-issuance/internal/config"
	"github.com/jnst/certificate-issuance/internal/logger"
	"github.com/jnst/certificate-issuance/internal/model"
	"github.com/jnst/certificate-issuance/internal/service"
)

const (
	errorRetryDelay = 1 * time.Second
	exitCode        = 1
)

func setupRedisClient(cfg *config.Config) (rueidis.Client, error) {
	redisClient, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{cfg.RedisAddr},
	})
	if err != nil {
		return nil, err
	}

	return redisClient, nil
}

func logIssued(ctx context.Context, event *model.CertificateIssuedEvent) error {
	slog.InfoContext(ctx, "certificate issued",
		slog.Int64("issuance_id", int64(event.IssuanceID)),
		slog.String("event_name", event.EventName),
		slog.String("email", event.Email),
		slog.String("document_id", event.DocumentID),
		slog.Time("issued_at", event.IssuedAt),
	)

	return nil
}

func runConsumerLoop(ctx context.Context, consumer *service.EventConsumerImpl) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("consumer stopped")
			return
		default:
			if err := consumer.ConsumeOnce(ctx); err != nil && ctx.Err() == nil {
				slog.Error("error consuming messages", slog.String("error", err.Error()))
				time.Sleep(errorRetryDelay)
			}
		}
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(loggerInstance)

	redisClient, err := setupRedisClient(cfg)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := service.NewEventConsumerImpl(redisClient, cfg.EventStream, cfg.ConsumerGroup, cfg.ConsumerName,
		logIssued, loggerInstance)
	consumer.EnsureGroup(ctx)

	slog.Info("starting audit consumer",
		slog.String("service", "consumer"),
		slog.String("stream", cfg.EventStream),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("consumer", cfg.ConsumerName),
	)

	runConsumerLoop(ctx, consumer)
}
