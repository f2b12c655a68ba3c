package repository

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jnst/certificate-issuance/internal/model"
)

// classifyStoreError wraps err in a *model.StoreError, marking connection-level
// failures as systemic.
func classifyStoreError(op string, err error) error {
	var storeErr *model.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	return &model.StoreError{Op: op, Systemic: isSystemic(err), Err: wrapSentinel(err)}
}

func isSystemic(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exception, 57P0x covers server shutdown.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return strings.Contains(err.Error(), "closed pool")
}

func wrapSentinel(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(model.ErrConflict, err)
	}

	if isSystemic(err) {
		return errors.Join(model.ErrUnavailable, err)
	}

	return err
}
