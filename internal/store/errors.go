// Package store is a thin hand-written repository layer over Postgres:
// one file per entity, explicit column lists, explicit Scan calls (no
// reflective snake/camel mapping), and domain error sentinels mapped from
// pgx/Postgres errors at the boundary.
package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Domain error kinds, mapped from pgx/Postgres errors at the repository
// boundary so callers never inspect driver-specific error types.
var (
	ErrNotFound        = errors.New("store: not found")
	ErrUniqueViolation = errors.New("store: unique constraint violation")
	ErrTransient       = errors.New("store: transient storage error")
	ErrFatal           = errors.New("store: fatal storage error")
)

// postgres SQLSTATE codes relevant to error classification.
const (
	sqlStateUniqueViolation   = "23505"
	sqlStateConnectionFailure = "08006"
	sqlStateConnDoesNotExist  = "08003"
	sqlStateCannotConnectNow  = "57P03"
	sqlStateTooManyConns      = "53300"
)

// Translate maps a raw error from a pgx call into one of the package's
// domain error sentinels, wrapping the original for logging.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
		case sqlStateConnectionFailure, sqlStateConnDoesNotExist, sqlStateCannotConnectNow, sqlStateTooManyConns:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrFatal, err)
}
