// Package errors defines the error taxonomy shared by the facade, the
// orchestrator and the leaf workers.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates invalid or missing setup; fatal at construction.
	ErrCodeConfiguration ErrorCode = "configuration"
	// ErrCodeQueue indicates the queue transport rejected an enqueue or dispatch.
	ErrCodeQueue ErrorCode = "queue"
	// ErrCodeStorage indicates a connectivity problem or a missing/incomplete schema.
	ErrCodeStorage ErrorCode = "storage"
	// ErrCodeVendorNotFound indicates no vendor is registered under the requested name.
	ErrCodeVendorNotFound ErrorCode = "vendor_not_found"
	// ErrCodeVendorInactive indicates the vendor exists but is not Active.
	ErrCodeVendorInactive ErrorCode = "vendor_inactive"
	// ErrCodeVendorCapabilityMissing indicates the vendor has no usable capability for the operation.
	ErrCodeVendorCapabilityMissing ErrorCode = "vendor_capability_missing"
	// ErrCodeJobNotFound indicates the job id is unknown.
	ErrCodeJobNotFound ErrorCode = "job_not_found"
	// ErrCodeJobAlreadyCompleted indicates a terminal Completed job.
	ErrCodeJobAlreadyCompleted ErrorCode = "job_already_completed"
	// ErrCodeJobAlreadyCanceled indicates a terminal Canceled job.
	ErrCodeJobAlreadyCanceled ErrorCode = "job_already_canceled"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// Sentinels usable with errors.Is. An *AppError matches a sentinel when the codes are equal.
var (
	ErrConfiguration           = &AppError{Code: ErrCodeConfiguration}
	ErrQueue                   = &AppError{Code: ErrCodeQueue}
	ErrStorage                 = &AppError{Code: ErrCodeStorage}
	ErrVendorNotFound          = &AppError{Code: ErrCodeVendorNotFound}
	ErrVendorInactive          = &AppError{Code: ErrCodeVendorInactive}
	ErrVendorCapabilityMissing = &AppError{Code: ErrCodeVendorCapabilityMissing}
	ErrJobNotFound             = &AppError{Code: ErrCodeJobNotFound}
	ErrJobAlreadyCompleted     = &AppError{Code: ErrCodeJobAlreadyCompleted}
	ErrJobAlreadyCanceled      = &AppError{Code: ErrCodeJobAlreadyCanceled}
	ErrValidation              = &AppError{Code: ErrCodeValidation}
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific input that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel (message-less AppError) with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t.Message != "" || t.Cause != nil {
		return false
	}
	return t.Code == e.Code
}

// New creates an AppError with the given code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Configuration creates a new Configuration error.
func Configuration(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeConfiguration, Message: message, Cause: cause}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationField creates a new Validation error for a specific input.
func ValidationField(field, message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message, Field: field}
}

// VendorNotFound reports an unknown vendor name.
func VendorNotFound(vendor string) *AppError {
	return Newf(ErrCodeVendorNotFound, "sms vendor %q not found", vendor)
}

// VendorInactive reports a vendor whose status is not Active.
func VendorInactive(vendor string) *AppError {
	return Newf(ErrCodeVendorInactive, "sms vendor %q is not active", vendor)
}

// VendorCapabilityMissing reports a vendor lacking the named capability.
func VendorCapabilityMissing(vendor, capability string) *AppError {
	return Newf(ErrCodeVendorCapabilityMissing, "sms vendor %q has no %s capability", vendor, capability)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsConfiguration checks if an error is a Configuration error.
func IsConfiguration(err error) bool { return isCode(err, ErrCodeConfiguration) }

// IsQueue checks if an error is a Queue error.
func IsQueue(err error) bool { return isCode(err, ErrCodeQueue) }

// IsStorage checks if an error is a Storage error.
func IsStorage(err error) bool { return isCode(err, ErrCodeStorage) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsVendorError reports whether err is one of the per-task vendor resolution errors.
func IsVendorError(err error) bool {
	return isCode(err, ErrCodeVendorNotFound) ||
		isCode(err, ErrCodeVendorInactive) ||
		isCode(err, ErrCodeVendorCapabilityMissing)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
