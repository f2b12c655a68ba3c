package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jnst/certificate-issuance/internal/model"
)

// ProviderLog names the dry-run mailer in delivery results.
const ProviderLog = "log"

// Ensure LogMailer implements Mailer.
var _ Mailer = (*LogMailer)(nil)

// LogMailer records deliveries in the log instead of sending them. It backs dry runs.
type LogMailer struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []Sent
}

// Sent is one delivery accepted by a LogMailer.
type Sent struct {
	Address   string
	Subject   string
	Document  model.DocumentID
	MessageID string
}

// NewLogMailer creates a dry-run mailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogMailer{logger: logger}
}

func (m *LogMailer) Open(_ context.Context) (Session, error) {
	return m, nil
}

func (m *LogMailer) Deliver(
	ctx context.Context, address string, doc model.CertificateDocument, msg model.Message,
) (model.DeliveryResult, error) {
	if err := ctx.Err(); err != nil {
		return model.DeliveryResult{}, &model.DeliveryError{Cause: model.CauseTransient, Provider: ProviderLog, Err: err}
	}

	id := "<" + uuid.NewString() + "@dry-run>"

	m.mu.Lock()
	m.sent = append(m.sent, Sent{Address: address, Subject: msg.Subject, Document: doc.ID, MessageID: id})
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "certificate delivery skipped",
		slog.String("to", address),
		slog.String("subject", msg.Subject),
		slog.String("document_id", doc.ID.String()),
		slog.Int("bytes", doc.Size()),
	)

	return model.DeliveryResult{Provider: ProviderLog, MessageID: id, AcceptedAt: time.Now()}, nil
}

func (m *LogMailer) Close() error {
	return nil
}

// Sent returns the deliveries recorded so far.
func (m *LogMailer) Sent() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Sent, len(m.sent))
	copy(out, m.sent)

	return out
}
