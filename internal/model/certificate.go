package model

import (
	"strings"

	"github.com/google/uuid"
)

// documentNamespace scopes name-based document identifiers.
var documentNamespace = uuid.MustParse("6f1c8f0e-3b7a-5d2e-9c41-0a8d7e52b6f3")

// DocumentID identifies a rendered certificate independently of participant-supplied text.
type DocumentID uuid.UUID

// NewDocumentID derives a stable identifier from the record and the template fingerprint.
func NewDocumentID(record ParticipantRecord, templateDigest string) DocumentID {
	key := strings.Join([]string{
		record.FullName,
		record.EventName,
		strings.ToLower(record.Email),
		record.EventDate.Format("2006-01-02"),
		templateDigest,
	}, "\x1f")

	return DocumentID(uuid.NewSHA1(documentNamespace, []byte(key)))
}

func (id DocumentID) String() string {
	return uuid.UUID(id).String()
}

// FileName returns the storage key for the document.
func (id DocumentID) FileName() string {
	return id.String() + ".pdf"
}

// CertificateDocument is a rendered certificate. It is never modified after creation.
type CertificateDocument struct {
	ID          DocumentID
	ContentType string
	// AttachmentName is the file name shown to the recipient.
	AttachmentName string
	Record         ParticipantRecord
	content        []byte
}

// NewCertificateDocument copies content so the document owns its bytes.
func NewCertificateDocument(
	id DocumentID, contentType, attachmentName string, record ParticipantRecord, content []byte,
) CertificateDocument {
	owned := make([]byte, len(content))
	copy(owned, content)

	return CertificateDocument{
		ID:             id,
		ContentType:    contentType,
		AttachmentName: attachmentName,
		Record:         record,
		content:        owned,
	}
}

// Bytes returns a copy of the document content.
func (d CertificateDocument) Bytes() []byte {
	out := make([]byte, len(d.content))
	copy(out, d.content)

	return out
}

// Size returns the content length in bytes.
func (d CertificateDocument) Size() int {
	return len(d.content)
}
