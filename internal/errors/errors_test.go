package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "message without cause",
			err:  &AppError{Code: ErrCodeJobNotFound, Message: "job not found"},
			want: "job not found",
		},
		{
			name: "message with cause",
			err:  &AppError{Code: ErrCodeQueue, Message: "enqueue job", Cause: errors.New("connection refused")},
			want: "enqueue job: connection refused",
		},
		{
			name: "sentinel falls back to code",
			err:  ErrJobAlreadyCanceled,
			want: "job_already_canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_IsMatchesSentinelByCode(t *testing.T) {
	err := fmt.Errorf("cancel: %w", Newf(ErrCodeJobAlreadyCompleted, "job %s already completed", "abc"))

	assert.ErrorIs(t, err, ErrJobAlreadyCompleted)
	assert.NotErrorIs(t, err, ErrJobAlreadyCanceled)
	assert.NotErrorIs(t, err, New(ErrCodeJobAlreadyCompleted, "other message"),
		"only message-less sentinels match by code")
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, ErrCodeQueue, "enqueue")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsQueue(err))
	assert.Equal(t, ErrCodeQueue, GetCode(err))
	assert.Nil(t, Wrap(nil, ErrCodeQueue, "enqueue"))
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errors.New("boom"), ErrCodeStorage, "insert job %s", "abc")
	assert.Equal(t, "insert job abc: boom", err.Error())
	assert.True(t, IsStorage(err))
}

func TestVendorConstructors(t *testing.T) {
	assert.ErrorIs(t, VendorNotFound("Acme"), ErrVendorNotFound)
	assert.ErrorIs(t, VendorInactive("Acme"), ErrVendorInactive)
	assert.ErrorIs(t, VendorCapabilityMissing("Acme", "send"), ErrVendorCapabilityMissing)
	assert.Contains(t, VendorCapabilityMissing("Acme", "balance").Error(), "balance")

	assert.True(t, IsVendorError(fmt.Errorf("task: %w", VendorInactive("Acme"))))
	assert.False(t, IsVendorError(ErrJobNotFound))
}

func TestValidationField(t *testing.T) {
	err := ValidationField("upto", "invalid datetime")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "upto", GetField(err))
	assert.Empty(t, GetField(errors.New("plain")))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestConfiguration(t *testing.T) {
	cause := errors.New("WORKER_COUNT: must be >= 1")
	err := Configuration("invalid configuration", cause)

	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, cause)
}
