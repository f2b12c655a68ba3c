package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jnst/certificate-issuance/internal/metrics"
	"github.com/jnst/certificate-issuance/internal/model"
	"github.com/jnst/certificate-issuance/internal/normalize"
	"github.com/jnst/certificate-issuance/internal/notify"
	"github.com/jnst/certificate-issuance/internal/render"
	"github.com/jnst/certificate-issuance/internal/repository"
)

// Run results reported to metrics.
const (
	RunCompleted   = "completed"
	RunTruncated   = "truncated"
	RunAborted     = "aborted"
	RunSetupFailed = "setup_failed"
)

// BatchServiceImpl implements BatchService.
type BatchServiceImpl struct {
	normalizer   *normalize.Normalizer
	issuanceRepo repository.IssuanceRepository
	mailer       notify.Mailer
	sink         DocumentSink
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// BatchOption configures a BatchServiceImpl.
type BatchOption func(*BatchServiceImpl)

// WithDocumentSink hands every rendered certificate to sink before it is persisted.
func WithDocumentSink(sink DocumentSink) BatchOption {
	return func(s *BatchServiceImpl) { s.sink = sink }
}

// WithMetrics records stage latencies and outcomes.
func WithMetrics(m *metrics.Metrics) BatchOption {
	return func(s *BatchServiceImpl) { s.metrics = m }
}

// WithClock overrides the time source used for issuance timestamps.
func WithClock(now func() time.Time) BatchOption {
	return func(s *BatchServiceImpl) { s.now = now }
}

// NewBatchServiceImpl creates a new BatchService implementation.
func NewBatchServiceImpl(
	issuanceRepo repository.IssuanceRepository,
	mailer notify.Mailer,
	logger *slog.Logger,
	opts ...BatchOption,
) *BatchServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}

	s := &BatchServiceImpl{
		normalizer:   normalize.New(),
		issuanceRepo: issuanceRepo,
		mailer:       mailer,
		logger:       logger,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// batchRun holds the resources shared by the records of one run.
type batchRun struct {
	renderer *render.Renderer
	store    repository.IssuanceSession
	session  notify.Session
	cfg      model.BatchConfig
	// abort stops dispatching after a failure that will affect every remaining record.
	abort context.CancelCauseFunc
}

// Run processes rows through normalize, render, persist and deliver.
func (s *BatchServiceImpl) Run(
	ctx context.Context, rows []model.RawRow, tmpl render.CertificateTemplate, cfg model.BatchConfig,
) (*model.RunReport, error) {
	cfg = cfg.Normalized()

	report := &model.RunReport{RunID: uuid.NewString(), StartedAt: s.now()}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	renderer, err := render.New(tmpl)
	if err != nil {
		s.metrics.RecordRun(RunSetupFailed)

		return nil, &model.SetupError{Resource: "template", Err: err}
	}

	runCtx := ctx
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	store, err := s.issuanceRepo.Acquire(runCtx)
	if err != nil {
		s.metrics.RecordRun(RunSetupFailed)

		return nil, &model.SetupError{Resource: "issuance store", Err: err}
	}
	defer store.Release()

	session, err := s.mailer.Open(runCtx)
	if err != nil {
		s.metrics.RecordRun(RunSetupFailed)

		return nil, &model.SetupError{Resource: "mail transport", Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close mail session", slog.Any("error", err))
		}
	}()

	dispatchCtx, abort := context.WithCancelCause(runCtx)
	defer abort(nil)

	run := &batchRun{renderer: renderer, store: store, session: session, cfg: cfg, abort: abort}

	limit := len(rows)
	if cfg.MaxRecords > 0 && cfg.MaxRecords < limit {
		limit = cfg.MaxRecords
	}

	logger.Info("batch started",
		slog.Int("rows", len(rows)),
		slog.Int("dispatch_limit", limit),
		slog.Int("concurrency", cfg.MaxConcurrency),
	)

	results := make([]*model.Outcome, limit)

	var g errgroup.Group
	g.SetLimit(cfg.MaxConcurrency)

	for i := range limit {
		if dispatchCtx.Err() != nil {
			break
		}

		g.Go(func() error {
			// The slot may have been granted after cancellation.
			if dispatchCtx.Err() != nil {
				return nil
			}

			outcome := s.processRecord(runCtx, run, i, rows[i])
			results[i] = &outcome

			return nil
		})
	}

	_ = g.Wait()

	for _, o := range results {
		if o != nil {
			report.Outcomes = append(report.Outcomes, *o)
		}
	}

	report.Pending = len(rows) - len(report.Outcomes)
	report.Truncated = report.Pending > 0

	if cause := context.Cause(dispatchCtx); cause != nil && !errors.Is(cause, context.Canceled) &&
		!errors.Is(cause, context.DeadlineExceeded) {
		report.Aborted = true
		report.AbortReason = cause.Error()
	}

	report.FinishedAt = s.now()
	report.Summary = model.Summarize(report.Outcomes)

	result := RunCompleted
	switch {
	case report.Aborted:
		result = RunAborted
	case report.Truncated:
		result = RunTruncated
	}

	s.metrics.RecordRun(result)

	logger.Info("batch finished",
		slog.String("result", result),
		slog.Int("done", report.Summary.Done),
		slog.Int("failed", report.Summary.Failed),
		slog.Int("pending", report.Pending),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

// processRecord drives one row through the state machine until it is done or failed.
// In-flight work is detached from run cancellation and bounded by the per-record timeout instead.
func (s *BatchServiceImpl) processRecord(runCtx context.Context, run *batchRun, index int, row model.RawRow) model.Outcome {
	ctx := context.WithoutCancel(runCtx)
	if run.cfg.PerRecordTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, run.cfg.PerRecordTimeout)
		defer cancel()
	}

	out := model.Outcome{Index: index, Row: row.Line, Identity: row.Identity(), State: model.StateReceived}

	var (
		rec model.ParticipantRecord
		doc model.CertificateDocument
	)

	steps := []struct {
		stage model.Stage
		run   func(ctx context.Context) error
	}{
		{model.StageNormalize, func(context.Context) error {
			var err error
			rec, err = s.normalizer.Normalize(row)
			if err == nil {
				out.Identity = rec.Identity()
			}

			return err
		}},
		{model.StageRender, func(ctx context.Context) error {
			var err error
			doc, err = run.renderer.Render(rec)
			if err != nil {
				return err
			}

			out.DocumentID = doc.ID.String()
			s.keep(ctx, doc)

			return nil
		}},
		{model.StagePersist, func(ctx context.Context) error {
			fact := rec.Fact(s.now())
			fact.DocumentID = doc.ID

			res, err := run.store.Persist(ctx, fact)
			if err != nil {
				var storeErr *model.StoreError
				if errors.As(err, &storeErr) && storeErr.Systemic {
					run.abort(fmt.Errorf("issuance store unavailable: %w", err))
				}

				return err
			}

			out.StoredID = res.ID
			out.AlreadyIssued = !res.Created

			return nil
		}},
		{model.StageDeliver, func(ctx context.Context) error {
			res, err := run.session.Deliver(ctx, rec.Email, doc, run.renderer.Template().MessageFor(rec))
			if err != nil {
				return err
			}

			out.MessageID = res.MessageID

			return nil
		}},
	}

	for _, step := range steps {
		if model.StageFrom(out.State) != step.stage {
			s.fail(&out, step.stage, fmt.Errorf("stage %s cannot run in state %s", step.stage, out.State))

			return out
		}

		started := time.Now()
		err := step.run(ctx)
		s.metrics.ObserveStage(step.stage, time.Since(started))

		if err != nil {
			s.fail(&out, step.stage, err)

			return out
		}

		if out.State, err = model.Advance(out.State); err != nil {
			s.fail(&out, step.stage, err)

			return out
		}
	}

	out.State, _ = model.Advance(out.State)

	s.metrics.RecordOutcome(out)
	s.logger.Debug("record done",
		slog.Int("row", out.Row),
		slog.String("email", out.Identity),
		slog.String("document_id", out.DocumentID),
		slog.Bool("already_issued", out.AlreadyIssued),
	)

	return out
}

func (s *BatchServiceImpl) fail(out *model.Outcome, stage model.Stage, err error) {
	out.State = model.StateFailed
	out.FailedStage = stage
	out.ErrorKind = model.KindOf(err)
	out.Detail = err.Error()
	out.Retryable = retryable(err)

	s.metrics.RecordOutcome(*out)
	s.logger.Warn("record failed",
		slog.Int("row", out.Row),
		slog.String("email", out.Identity),
		slog.String("stage", string(stage)),
		slog.String("kind", string(out.ErrorKind)),
		slog.Any("error", err),
	)
}

func (s *BatchServiceImpl) keep(ctx context.Context, doc model.CertificateDocument) {
	if s.sink == nil {
		return
	}

	if err := s.sink.Put(ctx, doc); err != nil {
		s.logger.Warn("failed to keep rendered certificate",
			slog.String("document_id", doc.ID.String()),
			slog.Any("error", err),
		)
	}
}

// retryable reports whether the same row could succeed on a later run without being edited.
func retryable(err error) bool {
	var (
		deliveryErr *model.DeliveryError
		storeErr    *model.StoreError
	)

	switch {
	case errors.As(err, &deliveryErr):
		return deliveryErr.Retryable()
	case errors.As(err, &storeErr):
		return storeErr.Systemic || errors.Is(err, model.ErrUnavailable) ||
			errors.Is(err, context.DeadlineExceeded)
	default:
		return model.KindOf(err) == model.KindCancelled
	}
}
