package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jnst/certificate-issuance/internal/model"
)

// ProviderSMTP names the SMTP transport in delivery results.
const ProviderSMTP = "smtp"

// SMTPConfig holds SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Ensure SMTPMailer implements Mailer.
var _ Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends certificates over one SMTP connection per batch.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSMTPMailer creates an SMTP mailer.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPMailer{cfg: cfg, logger: logger, now: time.Now}
}

// Open dials the SMTP server and authenticates.
func (m *SMTPMailer) Open(ctx context.Context) (Session, error) {
	if m.cfg.Host == "" || m.cfg.From == "" {
		return nil, fmt.Errorf("smtp: %w", model.ErrNotConfigured)
	}

	client, err := m.newClient()
	if err != nil {
		return nil, fmt.Errorf("smtp: %w", err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return nil, classifySMTPError(err)
	}

	m.logger.Debug("smtp connection opened", slog.String("host", m.cfg.Host), slog.Int("port", m.cfg.Port))

	return &smtpSession{mailer: m, client: client, sem: make(chan struct{}, 1)}, nil
}

func (m *SMTPMailer) newClient() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}

	if m.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(m.cfg.Port))
	}

	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}

	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	return mail.NewClient(m.cfg.Host, opts...)
}

func (m *SMTPMailer) buildMessage(address string, doc model.CertificateDocument, msg model.Message) (*mail.Msg, error) {
	from := m.cfg.From
	if msg.From != "" {
		from = msg.From
	}

	out := mail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, &model.DeliveryError{Cause: model.CauseInvalidMessage, Provider: ProviderSMTP, Err: err}
	}

	if err := out.To(address); err != nil {
		return nil, &model.DeliveryError{Cause: model.CauseInvalidMessage, Provider: ProviderSMTP, Err: err}
	}

	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	out.SetMessageID()
	out.SetDate()

	err := out.AttachReader(doc.AttachmentName, bytes.NewReader(doc.Bytes()),
		mail.WithFileContentType(mail.ContentType(doc.ContentType)))
	if err != nil {
		return nil, &model.DeliveryError{Cause: model.CauseInvalidMessage, Provider: ProviderSMTP, Err: err}
	}

	return out, nil
}

// smtpSession serializes sends on the shared connection and redials after a transport failure.
// A caller waiting for the connection gives up when its context ends.
type smtpSession struct {
	mailer *SMTPMailer
	sem    chan struct{}
	client *mail.Client
	broken bool
	closed bool
}

func (s *smtpSession) Deliver(
	ctx context.Context, address string, doc model.CertificateDocument, msg model.Message,
) (model.DeliveryResult, error) {
	out, err := s.mailer.buildMessage(address, doc, msg)
	if err != nil {
		return model.DeliveryResult{}, err
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return model.DeliveryResult{}, classifySMTPError(ctx.Err())
	}
	defer func() { <-s.sem }()

	if s.closed {
		return model.DeliveryResult{}, &model.DeliveryError{
			Cause: model.CauseTransient, Provider: ProviderSMTP, Err: fmt.Errorf("session closed"),
		}
	}

	if err := ctx.Err(); err != nil {
		return model.DeliveryResult{}, classifySMTPError(err)
	}

	if s.broken {
		_ = s.client.Close()
		if err := s.client.DialWithContext(ctx); err != nil {
			return model.DeliveryResult{}, classifySMTPError(err)
		}

		s.broken = false
	}

	if err := s.client.Send(out); err != nil {
		derr := classifySMTPError(err)
		if derr.Cause == model.CauseTransient {
			s.broken = true
		}

		return model.DeliveryResult{}, derr
	}

	return model.DeliveryResult{
		Provider:   ProviderSMTP,
		MessageID:  out.GetMessageID(),
		AcceptedAt: s.mailer.now(),
	}, nil
}

func (s *smtpSession) Close() error {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	if s.closed {
		return nil
	}

	s.closed = true

	return s.client.Close()
}
