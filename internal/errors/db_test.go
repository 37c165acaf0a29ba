package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapDBError_Nil(t *testing.T) {
	assert.NoError(t, MapDBError(nil))
}

func TestMapDBError_ContextErrors(t *testing.T) {
	err := MapDBError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeTimeout, GetCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = MapDBError(context.Canceled)
	assert.Equal(t, ErrCodeCanceled, GetCode(err))
}

func TestMapDBError_PgErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want ErrorCode
	}{
		{name: "undefined table", code: pgerrcode.UndefinedTable, want: ErrCodeStorage},
		{name: "undefined function", code: pgerrcode.UndefinedFunction, want: ErrCodeStorage},
		{name: "connection failure", code: pgerrcode.ConnectionFailure, want: ErrCodeStorage},
		{name: "too many connections", code: pgerrcode.TooManyConnections, want: ErrCodeStorage},
		{name: "admin shutdown", code: pgerrcode.AdminShutdown, want: ErrCodeStorage},
		{name: "foreign key violation", code: pgerrcode.ForeignKeyViolation, want: ErrCodeValidation},
		{name: "check violation", code: pgerrcode.CheckViolation, want: ErrCodeValidation},
		{name: "invalid datetime", code: pgerrcode.InvalidDatetimeFormat, want: ErrCodeValidation},
		{name: "other", code: pgerrcode.DivisionByZero, want: ErrCodeStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pgErr := &pgconn.PgError{Code: tt.code, ConstraintName: "sms_jobs_counts_check"}
			err := MapDBError(fmt.Errorf("exec: %w", pgErr))
			assert.Equal(t, tt.want, GetCode(err))

			var target *pgconn.PgError
			assert.True(t, errors.As(err, &target))
		})
	}
}

func TestMapDBError_ConstraintMessage(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "sms_jobs_counts_check"})
	assert.Contains(t, err.Error(), "sms_jobs_counts_check")

	err = MapDBError(&pgconn.PgError{Code: pgerrcode.NotNullViolation, ColumnName: "job_id"})
	assert.Contains(t, err.Error(), "a table constraint")
	assert.Equal(t, "job_id", GetField(err))
}

func TestMapDBError_PassThrough(t *testing.T) {
	plain := errors.New("plain")
	assert.Same(t, plain, MapDBError(plain))
}
