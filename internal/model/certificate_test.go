package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDocumentID(t *testing.T) {
	rec := ParticipantRecord{
		FullName:  "../../etc/passwd",
		EventName: "Hack24",
		Email:     "A@X.com",
		EventDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}

	id := NewDocumentID(rec, "digest-1")

	lower := rec
	lower.Email = "a@x.com"
	assert.Equal(t, id, NewDocumentID(lower, "digest-1"), "email case does not change the id")
	assert.NotEqual(t, id, NewDocumentID(rec, "digest-2"), "template changes the id")

	assert.Equal(t, id.String()+".pdf", id.FileName())
	assert.NotContains(t, id.FileName(), "/")
}

func TestCertificateDocument_OwnsContent(t *testing.T) {
	content := []byte("%PDF-1.3")
	doc := NewCertificateDocument(DocumentID{}, "application/pdf", "certificate.pdf", ParticipantRecord{}, content)

	content[0] = 'X'
	assert.Equal(t, byte('%'), doc.Bytes()[0])

	out := doc.Bytes()
	out[0] = 'Y'
	assert.Equal(t, byte('%'), doc.Bytes()[0])
	assert.Equal(t, 8, doc.Size())
}
