package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"ytsoob/internal/core/apperror"
)

// PostgreSQL error codes the stores translate.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
)

// mapError converts driver errors into AppErrors where the caller can act on them.
// Unknown errors are returned unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewTimeout("Database operation timed out", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewConflict("Duplicate value violates unique constraint").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewBusinessRule(apperror.CodeInvalidInput, "Referenced entity does not exist").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgSerializationFailure, pgDeadlockDetected:
		return apperror.NewConflict("Concurrent transaction conflict, retry the request").WithCause(err)
	case pgQueryCanceled:
		return apperror.NewTimeout("Statement timeout", err)
	}
	return err
}
