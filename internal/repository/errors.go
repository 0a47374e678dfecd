package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Common errors for repository operations.
var (
	ErrPersonNotFound   = errors.New("person not found")
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrConflict wraps any integrity constraint violation (unique, not-null, check, foreign key).
	ErrConflict = errors.New("constraint violation")
)

// integrityViolationClass is SQLSTATE class 23.
const integrityViolationClass pq.ErrorClass = "23"

// IsIntegrityViolation reports whether err is a PostgreSQL integrity constraint
// violation, whether it came through pgx or lib/pq.
func IsIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pq.ErrorCode(pgErr.Code).Class() == integrityViolationClass
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == integrityViolationClass
	}

	return false
}

// ConstraintName returns the violated constraint name, if known.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}

	return ""
}
