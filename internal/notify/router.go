package notify

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config selects and configures a mail provider.
type Config struct {
	Provider string
	SMTP     SMTPConfig
	Brevo    BrevoConfig
}

// NewMailer returns the mailer named by cfg.Provider. SMTP is the default.
func NewMailer(cfg Config, logger *slog.Logger) (Mailer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderSMTP:
		return NewSMTPMailer(cfg.SMTP, logger), nil
	case ProviderBrevo:
		return NewBrevo(cfg.Brevo, nil, logger), nil
	case ProviderLog:
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
