package knowledge

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the store maps onto its error taxonomy.
const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// ValidationError reports caller-supplied data that violates a field
// constraint. Always recoverable; surfaced as a rejected request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReferentialError reports a referenced entity that does not exist.
type ReferentialError struct {
	Entity string
	ID     int64
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Entity, e.ID)
}

// DuplicateError reports a uniqueness violation. The request is
// rejected, not retried.
type DuplicateError struct {
	Detail string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: %s", e.Detail)
}

// StorageError reports that the backing engine was unreachable or
// failed unexpectedly. Callers may retry.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Constraint enforcement happens in the database because
// check-then-insert is not race-free at the application level, so
// SQLSTATE codes are the authoritative signal for duplicates and
// broken references. Call sites translate them into typed errors with
// the ids they know.

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}

// constraintName reports the violated constraint when the driver
// provides one, so relation inserts can tell which endpoint broke a
// foreign key.
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
