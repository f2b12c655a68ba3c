package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jnst/certificate-issuance/internal/model"
	"github.com/jnst/certificate-issuance/internal/render"
	"github.com/jnst/certificate-issuance/internal/repository"
	"github.com/jnst/certificate-issuance/internal/roster"
	"github.com/jnst/certificate-issuance/internal/service"
)

const (
	contentTypeJSON        = "Content-Type"
	applicationJSON        = "application/json"
	failedToEncodeResponse = "failed to encode response"
	uploadField            = "excelFile"
	defaultListLimit       = 100
)

// APIServer handles HTTP requests for certificate issuance.
type APIServer struct {
	batchService service.BatchService
	issuanceRepo repository.IssuanceRepository
	template     render.CertificateTemplate
	batch        model.BatchConfig
	maxUpload    int64
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
}

// NewAPIServer creates a new API server instance.
func NewAPIServer(
	batchService service.BatchService,
	issuanceRepo repository.IssuanceRepository,
	tmpl render.CertificateTemplate,
	batch model.BatchConfig,
	maxUpload int64,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) *APIServer {
	if logger == nil {
		logger = slog.Default()
	}

	return &APIServer{
		batchService: batchService,
		issuanceRepo: issuanceRepo,
		template:     tmpl,
		batch:        batch,
		maxUpload:    maxUpload,
		gatherer:     gatherer,
		logger:       logger,
	}
}

// Routes mounts the API endpoints.
func (s *APIServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if timeout := s.requestTimeout(); timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	r.Post("/upload", s.Upload)
	r.Get("/issuances", s.ListIssuances)
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

// requestTimeout bounds a request to the batch run timeout plus a minute to decode and
// respond. An unbounded run leaves requests unbounded too.
func (s *APIServer) requestTimeout() time.Duration {
	if s.batch.RunTimeout <= 0 {
		return 0
	}

	return s.batch.RunTimeout + time.Minute
}

// Upload handles POST /upload: it decodes the roster in the excelFile field and runs a batch.
func (s *APIServer) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing "+uploadField+" file")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	rows, err := roster.Decode(header.Filename, data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.batchService.Run(r.Context(), rows, s.template, s.batch)
	if err != nil {
		var setupErr *model.SetupError
		if errors.As(err, &setupErr) {
			s.logger.ErrorContext(r.Context(), "batch setup failed", slog.Any("error", err))
			writeError(w, http.StatusServiceUnavailable, err.Error())

			return
		}

		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ListIssuances handles GET /issuances?event=...&limit=...
func (s *APIServer) ListIssuances(w http.ResponseWriter, r *http.Request) {
	event := r.URL.Query().Get("event")
	if event == "" {
		writeError(w, http.StatusBadRequest, "event parameter is required")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}

		limit = n
	}

	records, err := s.issuanceRepo.ListByEvent(r.Context(), event, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if records == nil {
		records = []*model.IssuanceRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// HealthCheck handles GET /health endpoint for service health check.
func (*APIServer) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(contentTypeJSON, applicationJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(failedToEncodeResponse, slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
