package notify

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/jnst/certificate-issuance/internal/model"
)

// classifySMTPError maps transport failures to delivery causes.
func classifySMTPError(err error) *model.DeliveryError {
	return &model.DeliveryError{Cause: smtpCause(err), Provider: ProviderSMTP, Err: err}
}

func smtpCause(err error) model.DeliveryCause {
	var (
		sendErr *mail.SendError
		tpErr   *textproto.Error
		netErr  net.Error
	)

	switch {
	case errors.As(err, &tpErr):
		return causeForCode(tpErr.Code)
	case errors.As(err, &sendErr):
		switch {
		case sendErr.IsTemp():
			return model.CauseTransient
		case sendErr.Reason == mail.ErrSMTPRcptTo:
			return model.CauseRecipientRejected
		case sendErr.Reason == mail.ErrGetSender, sendErr.Reason == mail.ErrGetRcpts:
			return model.CauseInvalidMessage
		case sendErr.Reason == mail.ErrConnCheck:
			return model.CauseTransient
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.CauseTransient
	case errors.As(err, &netErr):
		return model.CauseTransient
	}

	if strings.Contains(strings.ToLower(err.Error()), "auth") {
		return model.CauseAuth
	}

	return model.CauseUnknown
}

// causeForCode maps an SMTP reply code to a delivery cause.
func causeForCode(code int) model.DeliveryCause {
	switch {
	case code == 530 || code == 534 || code == 535:
		return model.CauseAuth
	case code >= 550 && code <= 553:
		return model.CauseRecipientRejected
	case code >= 400 && code < 500:
		return model.CauseTransient
	default:
		return model.CauseUnknown
	}
}
