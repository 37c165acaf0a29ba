package model

import (
	"errors"
	"strings"
	"time"
)

// SendStatus is the outcome of a single vendor send.
type SendStatus string

const (
	SendStatusSent    SendStatus = "Sent"
	SendStatusNotSent SendStatus = "Not Sent"
)

// Valid returns true if the SendStatus is valid.
func (s SendStatus) Valid() bool {
	return s == SendStatusSent || s == SendStatusNotSent
}

// Exception codes recorded by the engine itself rather than a vendor.
const (
	// ExceptionCodeTimeout marks tasks not acknowledged before the barrier timeout.
	ExceptionCodeTimeout = "TIMEOUT"
	// ExceptionCodeEngine marks tasks that failed before or around the vendor call.
	ExceptionCodeEngine = "ENGINE"
	// ExceptionCodeInvalidNumber marks destinations rejected by normalisation.
	ExceptionCodeInvalidNumber = "INVALID_TO"
)

// RecipientTask is one message to one destination. The caller fills the vendor
// and message fields; job_id and retry_number are injected by the orchestrator.
type RecipientTask struct {
	VendorName  string `json:"vendor_name"`
	Mask        string `json:"mask"`
	FromJSON    string `json:"from_json"`
	Body        string `json:"body"`
	To          string `json:"to"`
	JobID       string `json:"job_id,omitempty"`
	RetryNumber int    `json:"retry_number"`
}

// Validate checks the caller-provided fields.
func (t *RecipientTask) Validate() error {
	var errs []error
	if strings.TrimSpace(t.VendorName) == "" {
		errs = append(errs, errors.New("vendor_name is required"))
	}
	if strings.TrimSpace(t.To) == "" {
		errs = append(errs, errors.New("to is required"))
	}
	if strings.TrimSpace(t.Body) == "" {
		errs = append(errs, errors.New("body is required"))
	}
	return errors.Join(errs...)
}

// SendOutcome is what a vendor send capability reports. Ordinary delivery
// failures are expressed as SendStatusNotSent with an exception code.
type SendOutcome struct {
	Status           SendStatus
	ExceptionCode    string
	ExceptionMessage string
	ResponseJSON     string
}

// Sent reports whether the outcome counts as delivered.
func (o SendOutcome) Sent() bool {
	return o.Status == SendStatusSent
}

// NotSent builds a failed outcome.
func NotSent(code, message string) SendOutcome {
	return SendOutcome{Status: SendStatusNotSent, ExceptionCode: code, ExceptionMessage: message}
}

// SentLogEntry is the immutable record of one attempted send.
type SentLogEntry struct {
	JobID            string     `json:"job_id"            db:"job_id"`
	RetryNumber      int        `json:"retry_number"      db:"retry_number"`
	VendorName       string     `json:"vendor_name"       db:"vendor_name"`
	Mask             string     `json:"mask"              db:"mask"`
	FromJSON         string     `json:"from_json"         db:"from_json"`
	Body             string     `json:"body"              db:"body"`
	To               string     `json:"to"                db:"recipient"`
	SentAt           time.Time  `json:"sent_at"           db:"sent_at"`
	SentStatus       SendStatus `json:"sent_status"       db:"sent_status"`
	ExceptionCode    string     `json:"exception_code"    db:"exception_code"`
	ExceptionMessage string     `json:"exception_message" db:"exception_message"`
	ResponseJSON     string     `json:"response_json"     db:"response_json"`
}

// NewSentLogEntry builds the log row for a task outcome.
func NewSentLogEntry(task RecipientTask, to string, outcome SendOutcome, at time.Time) SentLogEntry {
	return SentLogEntry{
		JobID:            task.JobID,
		RetryNumber:      task.RetryNumber,
		VendorName:       task.VendorName,
		Mask:             task.Mask,
		FromJSON:         task.FromJSON,
		Body:             task.Body,
		To:               to,
		SentAt:           at,
		SentStatus:       outcome.Status,
		ExceptionCode:    outcome.ExceptionCode,
		ExceptionMessage: outcome.ExceptionMessage,
		ResponseJSON:     outcome.ResponseJSON,
	}
}

// Recipient converts a logged attempt back into a task for a retry round.
func (e SentLogEntry) Recipient() RecipientTask {
	return RecipientTask{
		VendorName: e.VendorName,
		Mask:       e.Mask,
		FromJSON:   e.FromJSON,
		Body:       e.Body,
		To:         e.To,
		JobID:      e.JobID,
	}
}

// NotSentQuery selects failed entries of one round for retry.
type NotSentQuery struct {
	JobID          string
	RetryNumber    int
	ExceptionCodes []string
}
