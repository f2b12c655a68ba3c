package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jnst/certificate-issuance/internal/model"
)

func TestClassifyStoreError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		systemic bool
		sentinel error
	}{
		{
			name:     "unique violation",
			err:      &pgconn.PgError{Code: "23505"},
			sentinel: model.ErrConflict,
		},
		{
			name:     "connection exception",
			err:      fmt.Errorf("insert: %w", &pgconn.PgError{Code: "08006"}),
			systemic: true,
			sentinel: model.ErrUnavailable,
		},
		{
			name:     "admin shutdown",
			err:      &pgconn.PgError{Code: "57P01"},
			systemic: true,
			sentinel: model.ErrUnavailable,
		},
		{
			name:     "network error",
			err:      &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			systemic: true,
			sentinel: model.ErrUnavailable,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("persist: %w", context.DeadlineExceeded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStoreError("persist", tt.err)

			var storeErr *model.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, tt.systemic, storeErr.Systemic)
			assert.Equal(t, model.KindStore, model.KindOf(err))

			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}

func TestClassifyStoreError_KeepsExisting(t *testing.T) {
	orig := &model.StoreError{Op: "persist", Systemic: true, Err: errors.New("boom")}
	assert.Same(t, orig, classifyStoreError("other", orig))
}
