package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotCancelable is returned by MarkCanceled when the job is missing or already terminal.
	ErrJobNotCancelable = errors.New("job is not in a cancelable state")
	// ErrJobIDRequired is returned when an operation is called without a job id.
	ErrJobIDRequired = errors.New("job_id is required")
	// ErrRepoNotConfigured is returned when a repository has no database handle.
	ErrRepoNotConfigured = errors.New("repository not configured")
)
