package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jnst/certificate-issuance/internal/model"
)

const (
	// ProviderBrevo names the Brevo transactional API in delivery results.
	ProviderBrevo = "brevo"

	defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"
)

// BrevoConfig holds Brevo API settings.
type BrevoConfig struct {
	APIKey   string
	Sender   string
	Endpoint string
	Timeout  time.Duration
}

// Ensure Brevo implements Mailer.
var _ Mailer = (*Brevo)(nil)

// Brevo sends certificates through the Brevo transactional email API.
type Brevo struct {
	cfg    BrevoConfig
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewBrevo creates a Brevo mailer. A nil client gets a default one bounded by cfg.Timeout.
func NewBrevo(cfg BrevoConfig, client *http.Client, logger *slog.Logger) *Brevo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultBrevoEndpoint
	}

	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}

		client = &http.Client{Timeout: timeout}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Brevo{cfg: cfg, http: client, logger: logger, now: time.Now}
}

// Open checks the mailer is configured. The API is stateless, so there is no connection to hold.
func (b *Brevo) Open(_ context.Context) (Session, error) {
	if b.cfg.APIKey == "" || b.cfg.Sender == "" {
		return nil, fmt.Errorf("brevo: %w", model.ErrNotConfigured)
	}

	return b, nil
}

type brevoAttachment struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type brevoEmail struct {
	To          []map[string]string `json:"to"`
	Sender      map[string]string   `json:"sender"`
	Subject     string              `json:"subject"`
	TextContent string              `json:"textContent"`
	Attachment  []brevoAttachment   `json:"attachment"`
}

type brevoResponse struct {
	MessageID string `json:"messageId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Deliver posts one email with the certificate attached.
func (b *Brevo) Deliver(
	ctx context.Context, address string, doc model.CertificateDocument, msg model.Message,
) (model.DeliveryResult, error) {
	sender := b.cfg.Sender
	if msg.From != "" {
		sender = msg.From
	}

	payload := brevoEmail{
		To:          []map[string]string{{"email": address}},
		Sender:      map[string]string{"email": sender},
		Subject:     msg.Subject,
		TextContent: msg.Body,
		Attachment: []brevoAttachment{{
			Content: base64.StdEncoding.EncodeToString(doc.Bytes()),
			Name:    doc.AttachmentName,
		}},
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return model.DeliveryResult{}, b.fail(model.CauseInvalidMessage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(buf))
	if err != nil {
		return model.DeliveryResult{}, b.fail(model.CauseInvalidMessage, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.cfg.APIKey)

	resp, err := b.http.Do(req)
	if err != nil {
		return model.DeliveryResult{}, b.fail(transportCause(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var decoded brevoResponse
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode >= http.StatusMultipleChoices {
		reason := resp.Status
		if decoded.Message != "" {
			reason += ": " + decoded.Message
		}

		return model.DeliveryResult{}, b.fail(causeForStatus(resp.StatusCode), errors.New(reason))
	}

	return model.DeliveryResult{
		Provider:   ProviderBrevo,
		MessageID:  decoded.MessageID,
		AcceptedAt: b.now(),
	}, nil
}

// Close is a no-op; each delivery is an independent request.
func (b *Brevo) Close() error {
	return nil
}

func (b *Brevo) fail(cause model.DeliveryCause, err error) *model.DeliveryError {
	return &model.DeliveryError{Cause: cause, Provider: ProviderBrevo, Err: err}
}

func causeForStatus(status int) model.DeliveryCause {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return model.CauseAuth
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		return model.CauseTransient
	case status == http.StatusBadRequest:
		return model.CauseInvalidMessage
	default:
		return model.CauseUnknown
	}
}

func transportCause(err error) model.DeliveryCause {
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.CauseTransient
	case errors.As(err, &netErr):
		return model.CauseTransient
	default:
		return model.CauseUnknown
	}
}
