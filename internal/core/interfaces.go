package core

import (
	"context"
	"time"

	"github.com/target/bgsms/internal/domain/model"
)

// This file contains the ports between the orchestration services and their
// collaborators: storage, queue transport, process control, vendor
// capabilities and notifications. Services depend on these interfaces, not
// on concrete adapters.

// JobRepository persists Job aggregates.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	// GetByID returns (nil, nil) when the job does not exist.
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// RecordOutcome appends a sent log entry and applies the atomic aggregate
	// update for it in one transaction, returning the updated job.
	RecordOutcome(ctx context.Context, entry model.SentLogEntry) (*model.Job, error)
	// RecordMissingOutcome records entry only while the recipient has fewer
	// than expected rows in the entry's round, reporting whether it did.
	RecordMissingOutcome(ctx context.Context, entry model.SentLogEntry, expected int) (*model.Job, bool, error)
	// MarkCanceled transitions a Started/Processing job to Canceled.
	MarkCanceled(ctx context.Context, id string, at time.Time) (*model.Job, error)
	// DeleteStartedBefore deletes jobs (and their sent log) with started_at <= upto.
	DeleteStartedBefore(ctx context.Context, upto time.Time) (int64, error)
}

// SentLogRepository reads the append-only sent log.
type SentLogRepository interface {
	ListNotSent(ctx context.Context, q model.NotSentQuery) ([]model.SentLogEntry, error)
	ListByJob(ctx context.Context, jobID string) ([]model.SentLogEntry, error)
}

// VendorRepository reads vendor configuration rows.
type VendorRepository interface {
	// GetByName returns (nil, nil) when the vendor does not exist.
	GetByName(ctx context.Context, name string) (*model.Vendor, error)
}

// TemplateRepository reads notification templates.
type TemplateRepository interface {
	GetByCode(ctx context.Context, code model.TemplateCode) (*model.NotificationTemplate, error)
}

// SchemaManager creates and validates the storage schema.
type SchemaManager interface {
	CreateStructure(ctx context.Context) (bool, error)
	Validate(ctx context.Context) error
}

// TimeProvider supplies the current time in the configured zone.
type TimeProvider interface {
	Now() time.Time
}
