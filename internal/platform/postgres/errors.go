package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
)

// IsUniqueViolation reports whether err is a unique-constraint violation,
// which is how two transactions racing on the same idempotency key or number
// resolve their conflict.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsLockTimeout reports whether err means a row-lock wait exceeded the
// database's configured limit. Retryable from the caller's side.
func IsLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvailable
}
