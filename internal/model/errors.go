package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned when a backing service cannot be reached.
	ErrUnavailable = errors.New("unavailable")
	// ErrNotConfigured is returned when a collaborator is missing required settings.
	ErrNotConfigured = errors.New("not configured")
	// ErrIssuanceNotFound is returned when an issuance lookup has no result.
	ErrIssuanceNotFound = errors.New("issuance not found")
)

// ErrorKind classifies a per-record failure in the run report.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindRender     ErrorKind = "render"
	KindStore      ErrorKind = "store"
	KindDelivery   ErrorKind = "delivery"
	KindCancelled  ErrorKind = "cancelled"
	KindInternal   ErrorKind = "internal"
)

// KindOf maps an error to its report classification.
func KindOf(err error) ErrorKind {
	var (
		validationErr *ValidationError
		renderErr     *RenderError
		storeErr      *StoreError
		deliveryErr   *DeliveryError
	)

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &renderErr):
		return KindRender
	case errors.As(err, &storeErr):
		return KindStore
	case errors.As(err, &deliveryErr):
		return KindDelivery
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}

// FieldError names one offending field of a roster row.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (f FieldError) String() string {
	return f.Field + " " + f.Reason
}

// ValidationError is returned when a roster row cannot become a ParticipantRecord.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}

	return strings.Join(parts, "; ")
}

// Has reports whether the named field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}

	return false
}

// RenderError is returned when a certificate cannot be laid out or encoded.
type RenderError struct {
	// Line is the template line that failed, empty for document-level failures.
	Line   string
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	msg := "render"
	if e.Line != "" {
		msg += fmt.Sprintf(" line %q", e.Line)
	}

	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

// StoreError is returned when an issuance cannot be persisted.
type StoreError struct {
	Op string
	// Systemic marks failures that will affect every remaining record, such as a lost connection.
	Systemic bool
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DeliveryCause classifies why a delivery failed.
type DeliveryCause string

const (
	CauseAuth              DeliveryCause = "auth"
	CauseRecipientRejected DeliveryCause = "recipient_rejected"
	CauseTransient         DeliveryCause = "transient"
	CauseInvalidMessage    DeliveryCause = "invalid_message"
	CauseUnknown           DeliveryCause = "unknown"
)

// DeliveryError is returned when the transport does not accept a certificate email.
type DeliveryError struct {
	Cause    DeliveryCause
	Provider string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver via %s (%s): %v", e.Provider, e.Cause, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt could succeed without changing the input.
func (e *DeliveryError) Retryable() bool {
	return e.Cause == CauseTransient
}

// SetupError is returned when a batch cannot acquire a shared resource; no record is processed.
type SetupError struct {
	Resource string
	Err      error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Resource, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }
