package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jnst/certificate-issuance/internal/model"
)

// dirSink writes rendered certificates to a directory, one file per document id.
type dirSink struct {
	dir string
}

func newDirSink(dir string) (*dirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	return &dirSink{dir: dir}, nil
}

func (s *dirSink) Put(_ context.Context, doc model.CertificateDocument) error {
	return os.WriteFile(filepath.Join(s.dir, doc.ID.FileName()), doc.Bytes(), 0o644)
}
