package errors

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapDBError maps database errors to AppError instances:
//   - context timeouts/cancellations → Timeout/Canceled
//   - undefined table/column/function → Storage ("schema missing or incomplete")
//   - connection class errors → Storage
//   - constraint violations → Validation
//   - any other PostgreSQL error → Storage
//
// Errors that did not come from the database are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "database operation timed out", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "database operation canceled", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &AppError{Code: ErrCodeStorage, Message: "database connection failed", Cause: err}
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UndefinedTable,
		pgErr.Code == pgerrcode.UndefinedColumn,
		pgErr.Code == pgerrcode.UndefinedFunction:
		return &AppError{Code: ErrCodeStorage, Message: "database schema missing or incomplete", Cause: pgErr}
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgerrcode.IsInsufficientResources(pgErr.Code),
		pgerrcode.IsOperatorIntervention(pgErr.Code):
		return &AppError{Code: ErrCodeStorage, Message: "database unavailable", Cause: pgErr}
	case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "record violates " + constraintLabel(pgErr),
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgErr.Code == pgerrcode.InvalidDatetimeFormat,
		pgErr.Code == pgerrcode.DatetimeFieldOverflow,
		pgErr.Code == pgerrcode.InvalidTextRepresentation:
		return &AppError{Code: ErrCodeValidation, Message: "invalid input value", Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeStorage, Message: "database error", Cause: pgErr}
	}
}

func constraintLabel(pgErr *pgconn.PgError) string {
	if pgErr.ConstraintName != "" {
		return "constraint " + pgErr.ConstraintName
	}
	return "a table constraint"
}
