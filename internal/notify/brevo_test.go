package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/certificate-issuance/internal/model"
)

const testEndpoint = "https://brevo.test/v3/smtp/email"

func testMessage() model.Message {
	return model.Message{Subject: "Certificate", Body: "Hello"}
}

func testDocument() model.CertificateDocument {
	rec := model.ParticipantRecord{
		FullName:  "Ada Lovelace",
		EventName: "GopherCon",
		Email:     "ada@example.com",
		EventDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	return model.NewCertificateDocument(model.NewDocumentID(rec, "abc"), "application/pdf", "certificate.pdf", rec, []byte("%PDF-1.3 test"))
}

func newTestBrevo(t *testing.T) (*Brevo, *httpmock.MockTransport) {
	t.Helper()

	transport := httpmock.NewMockTransport()
	client := &http.Client{Transport: transport}

	return NewBrevo(BrevoConfig{APIKey: "key-1", Sender: "noreply@example.com", Endpoint: testEndpoint}, client, nil), transport
}

func TestBrevo_DeliverPostsAttachment(t *testing.T) {
	b, transport := newTestBrevo(t)
	doc := testDocument()

	var captured brevoEmail
	transport.RegisterResponder(http.MethodPost, testEndpoint, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "key-1", r.Header.Get("api-key"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured))

		return httpmock.NewStringResponse(http.StatusCreated, `{"messageId":"<201@smtp-relay.brevo.com>"}`), nil
	})

	session, err := b.Open(context.Background())
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	result, err := session.Deliver(context.Background(), "ada@example.com", doc, model.Message{Subject: "Your certificate", Body: "Hi"})
	require.NoError(t, err)

	assert.Equal(t, ProviderBrevo, result.Provider)
	assert.Equal(t, "<201@smtp-relay.brevo.com>", result.MessageID)
	require.Len(t, captured.To, 1)
	assert.Equal(t, "ada@example.com", captured.To[0]["email"])
	assert.Equal(t, "noreply@example.com", captured.Sender["email"])
	assert.Equal(t, "Your certificate", captured.Subject)
	require.Len(t, captured.Attachment, 1)
	assert.Equal(t, "certificate.pdf", captured.Attachment[0].Name)

	content, err := base64.StdEncoding.DecodeString(captured.Attachment[0].Content)
	require.NoError(t, err)
	assert.Equal(t, doc.Bytes(), content)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestBrevo_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		cause     model.DeliveryCause
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, model.CauseAuth, false},
		{"bad request", http.StatusBadRequest, model.CauseInvalidMessage, false},
		{"rate limited", http.StatusTooManyRequests, model.CauseTransient, true},
		{"server error", http.StatusBadGateway, model.CauseTransient, true},
		{"not found", http.StatusNotFound, model.CauseUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, transport := newTestBrevo(t)
			transport.RegisterResponder(http.MethodPost, testEndpoint,
				httpmock.NewStringResponder(tt.status, `{"code":"x","message":"rejected"}`))

			_, err := b.Deliver(context.Background(), "ada@example.com", testDocument(), model.Message{})
			require.Error(t, err)

			var derr *model.DeliveryError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, tt.cause, derr.Cause)
			assert.Equal(t, tt.retryable, derr.Retryable())
			assert.Contains(t, err.Error(), "rejected")
		})
	}
}

func TestBrevo_TransportErrorIsTransient(t *testing.T) {
	b, transport := newTestBrevo(t)
	transport.RegisterResponder(http.MethodPost, testEndpoint, httpmock.NewErrorResponder(errors.New("boom")))

	_, err := b.Deliver(context.Background(), "ada@example.com", testDocument(), model.Message{})

	var derr *model.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, ProviderBrevo, derr.Provider)
	assert.Equal(t, model.CauseTransient, derr.Cause)
}

func TestBrevo_OpenRequiresConfig(t *testing.T) {
	b := NewBrevo(BrevoConfig{}, nil, nil)

	_, err := b.Open(context.Background())
	require.ErrorIs(t, err, model.ErrNotConfigured)
}
