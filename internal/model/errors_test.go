package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"validation", &ValidationError{Fields: []FieldError{{Field: "email", Reason: "invalid"}}}, KindValidation},
		{"wrapped render", fmt.Errorf("row 3: %w", &RenderError{Line: "name", Reason: "too wide"}), KindRender},
		{"store", &StoreError{Op: "persist", Err: ErrConflict}, KindStore},
		{"delivery", &DeliveryError{Cause: CauseAuth, Provider: "smtp", Err: errors.New("535")}, KindDelivery},
		{"cancelled", context.Canceled, KindCancelled},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Fields: []FieldError{
		{Field: "fullName", Reason: "empty"},
		{Field: "eventDate", Reason: "ambiguous"},
	}}

	assert.Equal(t, "fullName empty; eventDate ambiguous", err.Error())
	assert.True(t, err.Has("eventDate"))
	assert.False(t, err.Has("email"))
}

func TestErrorMessagesAndUnwrap(t *testing.T) {
	render := &RenderError{Line: "event", Reason: "does not fit at 12pt"}
	assert.Equal(t, `render line "event": does not fit at 12pt`, render.Error())

	store := &StoreError{Op: "persist", Systemic: true, Err: ErrUnavailable}
	assert.ErrorIs(t, store, ErrUnavailable)

	setup := &SetupError{Resource: "mail transport", Err: store}
	assert.ErrorIs(t, setup, ErrUnavailable)
	assert.Equal(t, "acquire mail transport: store persist: unavailable", setup.Error())

	delivery := &DeliveryError{Cause: CauseRecipientRejected, Provider: "smtp", Err: errors.New("550")}
	assert.False(t, delivery.Retryable())
	assert.True(t, (&DeliveryError{Cause: CauseTransient}).Retryable())
}
