// Package main provides the HTTP API server that accepts roster uploads and issues certificates.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jnst/certificate-issuance/internal/config"
	"github.com/jnst/certificate-issuance/internal/logger"
	"github.com/jnst/certificate-issuance/internal/metrics"
	"github.com/jnst/certificate-issuance/internal/notify"
	"github.com/jnst/certificate-issuance/internal/render"
	"github.com/jnst/certificate-issuance/internal/repository"
	"github.com/jnst/certificate-issuance/internal/service"
)

const (
	exitCode        = 1
	shutdownTimeout = 30 * time.Second
)

func loadTemplate(path string) (render.CertificateTemplate, error) {
	if path == "" {
		return render.DefaultTemplate(), nil
	}

	return render.LoadTemplate(path)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(loggerInstance)

	tmpl, err := loadTemplate(cfg.TemplatePath)
	if err != nil {
		slog.Error("failed to load certificate template", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	dbPool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer dbPool.Close()

	mailer, err := notify.NewMailer(cfg.Mail(), loggerInstance)
	if err != nil {
		slog.Error("failed to configure mailer", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	issuanceRepo := repository.NewIssuanceRepositoryImpl(dbPool)
	batchService := service.NewBatchServiceImpl(issuanceRepo, mailer, loggerInstance,
		service.WithMetrics(metrics.New(registry)))

	server := NewAPIServer(batchService, issuanceRepo, tmpl, cfg.Batch(), cfg.UploadMaxBytes, registry, loggerInstance)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, stopping API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
	}()

	slog.Info("starting API server", slog.String("service", "api"), slog.String("port", cfg.Port))

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("failed to start server", slog.String("error", err.Error()))
		return
	}
}
