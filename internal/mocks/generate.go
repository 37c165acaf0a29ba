// Package mocks provides test doubles for the bgsms ports.
//
// The gomock mocks are generated with go.uber.org/mock from the interfaces in
// internal/core. To regenerate them after an interface change, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	jobs := mocks.NewMockJobRepository(ctrl)
//	jobs.EXPECT().GetByID(gomock.Any(), jobID).Return(job, nil)
//
// Lightweight hand-written doubles that keep state across calls live in the
// fakes subpackage.
package mocks

// JobRepository: Create, GetByID, RecordOutcome, RecordMissingOutcome, MarkCanceled, DeleteStartedBefore
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=job_repository_mock.go github.com/target/bgsms/internal/core JobRepository

// SentLogRepository: ListNotSent, ListByJob
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=sent_log_repository_mock.go github.com/target/bgsms/internal/core SentLogRepository

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=lookup_repository_mock.go github.com/target/bgsms/internal/core VendorRepository,TemplateRepository,SchemaManager

// Queue transport ports used by the facade, the orchestrator and the leaf workers.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=queue_mock.go github.com/target/bgsms/internal/core QueueClient,QueueAdmin,QueueWorker

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=process_mock.go github.com/target/bgsms/internal/core ProcessController,Process

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=vendor_mock.go github.com/target/bgsms/internal/core VendorRegistry,SendCapability,BalanceCapability

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notify_mock.go github.com/target/bgsms/internal/core JobNotifier,Mailer
