// Package notify delivers rendered certificates to participants by email.
package notify

import (
	"context"

	"github.com/jnst/certificate-issuance/internal/model"
)

// Mailer opens one transport session per batch.
type Mailer interface {
	Open(ctx context.Context) (Session, error)
}

// Session delivers messages over a transport acquired by Mailer.Open.
// Implementations are safe for concurrent use.
type Session interface {
	// Deliver sends msg to address with doc attached. Failures are *model.DeliveryError.
	Deliver(ctx context.Context, address string, doc model.CertificateDocument, msg model.Message) (model.DeliveryResult, error)
	Close() error
}
