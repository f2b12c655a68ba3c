package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/certificate-issuance/internal/metrics"
	"github.com/jnst/certificate-issuance/internal/model"
	"github.com/jnst/certificate-issuance/internal/notify"
	"github.com/jnst/certificate-issuance/internal/render"
	"github.com/jnst/certificate-issuance/internal/repository"
	"github.com/jnst/certificate-issuance/internal/service"
)

type failingMailer struct{}

func (failingMailer) Open(context.Context) (notify.Session, error) {
	return nil, model.ErrNotConfigured
}

func newTestServer(t *testing.T, mailer notify.Mailer) (*APIServer, *repository.IssuanceRepositoryMemory) {
	t.Helper()

	registry := prometheus.NewRegistry()
	repo := repository.NewIssuanceRepositoryMemory()
	batch := service.NewBatchServiceImpl(repo, mailer, nil, service.WithMetrics(metrics.New(registry)))

	cfg := model.BatchConfig{MaxConcurrency: 2, PerRecordTimeout: 5 * time.Second, RunTimeout: time.Minute}

	return NewAPIServer(batch, repo, render.DefaultTemplate(), cfg, 1<<20, registry, nil), repo
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)

	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	return req
}

const rosterCSV = "Name,Event,Email,Date\n" +
	"Ann,Hack24,a@x.com,2024-05-01\n" +
	",Hack24,b@x.com,2024-05-01\n"

func TestUpload_RunsBatch(t *testing.T) {
	server, repo := newTestServer(t, notify.NewLogMailer(nil))
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, uploadRequest(t, uploadField, "roster.csv", []byte(rosterCSV)))

	require.Equal(t, http.StatusOK, rec.Code)

	var report model.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, model.StateDone, report.Outcomes[0].State)
	assert.Equal(t, model.StageNormalize, report.Outcomes[1].FailedStage)
	assert.Equal(t, "fullName empty", report.Outcomes[1].Detail)

	issued, err := repo.ListByEvent(context.Background(), "Hack24", 0)
	require.NoError(t, err)
	assert.Len(t, issued, 1)
}

func TestUpload_BadRequests(t *testing.T) {
	server, _ := newTestServer(t, notify.NewLogMailer(nil))

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"wrong field", uploadRequest(t, "file", "roster.csv", []byte(rosterCSV))},
		{"unsupported file", uploadRequest(t, uploadField, "roster.pdf", []byte("%PDF-1.4"))},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString("{}"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			server.Routes().ServeHTTP(rec, tt.req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpload_SetupFailure(t *testing.T) {
	server, _ := newTestServer(t, failingMailer{})
	rec := httptest.NewRecorder()

	server.Routes().ServeHTTP(rec, uploadRequest(t, uploadField, "roster.csv", []byte(rosterCSV)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "mail transport")
}

func TestListIssuances(t *testing.T) {
	server, _ := newTestServer(t, notify.NewLogMailer(nil))
	handler := server.Routes()

	handler.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, uploadField, "roster.csv", []byte(rosterCSV)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issuances?event=Hack24", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var records []model.IssuanceRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "a@x.com", records[0].Email)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issuances", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/issuances?event=Hack24&limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	server, _ := newTestServer(t, notify.NewLogMailer(nil))
	assert.Equal(t, 2*time.Minute, server.requestTimeout())

	server.batch.RunTimeout = 0
	assert.Zero(t, server.requestTimeout())
}

func TestUpload_UnboundedRunHasNoRequestDeadline(t *testing.T) {
	server, _ := newTestServer(t, notify.NewLogMailer(nil))
	server.batch.RunTimeout = 0

	var hasDeadline bool

	handler := server.Routes().(*chi.Mux)
	handler.Get("/deadline", func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, hasDeadline)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, uploadRequest(t, uploadField, "roster.csv", []byte(rosterCSV)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t, notify.NewLogMailer(nil))
	handler := server.Routes()

	handler.ServeHTTP(httptest.NewRecorder(), uploadRequest(t, uploadField, "roster.csv", []byte(rosterCSV)))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "certificate_runs_total")
}
