package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/bgsms/config"
	"github.com/target/bgsms/internal/adapters/email"
	"github.com/target/bgsms/internal/adapters/process"
	"github.com/target/bgsms/internal/adapters/reaper"
	"github.com/target/bgsms/internal/adapters/redisqueue"
	"github.com/target/bgsms/internal/adapters/vendors"
	"github.com/target/bgsms/internal/data"
	"github.com/target/bgsms/internal/domain/model"
	"github.com/target/bgsms/internal/service"
)

const (
	defaultWorkerExecutable = "bgsms-worker"
	vendorHTTPTimeout       = 30 * time.Second
)

// Infra holds the connections shared by the service builders of one process.
type Infra struct {
	Config  config.AppConfig
	DB      *sql.DB
	Redis   redis.UniversalClient
	Queue   *redisqueue.Queue
	Metrics *Metrics
	Logger  *slog.Logger
}

// InfraOptions controls what Connect dials.
type InfraOptions struct {
	Config config.AppConfig
	// Role selects the queue server list (QUEUE_CLIENT_SERVERS or QUEUE_WORKER_SERVERS).
	Role config.QueueRole
	// Scrapable is true for long-running processes that serve /metrics.
	Scrapable bool
	Logger    *slog.Logger
}

// Connect opens the database, the Redis queue transport and the metrics sink.
func Connect(ctx context.Context, opts InfraOptions) (*Infra, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	db, err := ConnectDB(ctx, DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	redisClient, err := ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.RedisFor(opts.Role), Logger: logger})
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database after redis connect failure", "error", cerr)
		}
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	queue, err := redisqueue.New(redisqueue.Options{
		Client:    redisClient,
		KeyPrefix: cfg.Queue.KeyPrefix,
		Logger:    logger,
	})
	if err != nil {
		return nil, errors.Join(err, redisClient.Close(), db.Close())
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			return nil, errors.Join(err, redisClient.Close(), db.Close())
		}
	}

	return &Infra{
		Config:  cfg,
		DB:      db,
		Redis:   redisClient,
		Queue:   queue,
		Metrics: InitMetrics(cfg.Observability.Metrics, opts.Scrapable, logger),
		Logger:  logger,
	}, nil
}

// Close releases every connection held by i.
func (i *Infra) Close(ctx context.Context) error {
	var errs []error
	if err := i.Metrics.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close metrics: %w", err))
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (i *Infra) repoConfig() data.RepoConfig {
	return data.RepoConfig{
		Logger:       i.Logger,
		TimeProvider: data.NewRealTimeProvider(i.Config.Location()),
	}
}

// Schema returns the schema manager over i's database.
func (i *Infra) Schema() *data.SchemaRepo {
	return data.NewSchemaRepo(i.DB, i.repoConfig())
}

// VendorRegistry returns the registry of built-in vendor capabilities.
func (i *Infra) VendorRegistry() *vendors.Registry {
	return vendors.NewDefaultRegistry(vendors.DefaultOptions{
		HTTPClient: &http.Client{Timeout: vendorHTTPTimeout},
		Logger:     i.Logger,
	})
}

// Notifier builds the email notifier over the template table.
func (i *Infra) Notifier() (*service.EmailNotifier, error) {
	return service.NewEmailNotifier(service.EmailNotifierOptions{
		Templates:   data.NewTemplateRepo(i.DB),
		Mailer:      email.NewMailer(email.MailerOptions{Logger: i.Logger}),
		Location:    i.Config.Location(),
		DetailsLink: i.Config.JobDetailsLink,
		Logger:      i.Logger,
	})
}

// Processes builds the process controller for the configured worker binary.
// An unset WORKER_EXECUTABLE falls back to bgsms-worker on PATH; Submit
// still rejects that configuration before spawning anything.
func (i *Infra) Processes() (*process.Controller, error) {
	exe := i.Config.WorkerExecutable
	if exe == "" {
		exe = defaultWorkerExecutable
	}
	return process.New(process.Options{
		Executable: exe,
		PkillPath:  i.Config.Commands.Pkill,
		Logger:     i.Logger,
	})
}

// Reaper builds the reaper service over the queue and the job table.
func (i *Infra) Reaper() (*service.ReaperService, error) {
	return service.NewReaperService(service.ReaperServiceOptions{
		Admin:   i.Queue,
		Jobs:    data.NewJobRepo(i.DB, i.repoConfig()),
		Config:  i.Config.Reaper,
		Logger:  i.Logger,
		Metrics: i.Metrics.Sink,
	})
}

// JobService builds the job facade. The storage schema is validated.
func (i *Infra) JobService(ctx context.Context) (*service.JobService, error) {
	procs, err := i.Processes()
	if err != nil {
		return nil, err
	}
	notifier, err := i.Notifier()
	if err != nil {
		return nil, err
	}
	rc := i.repoConfig()
	return service.NewJobService(ctx, service.JobServiceOptions{
		Config: i.Config,
		Stores: service.JobStores{
			Jobs:    data.NewJobRepo(i.DB, rc),
			Vendors: data.NewVendorRepo(i.DB),
			Schema:  data.NewSchemaRepo(i.DB, rc),
		},
		Runtime: service.JobRuntime{
			Queue:     i.Queue,
			Admin:     i.Queue,
			Processes: procs,
			Vendors:   i.VendorRegistry(),
		},
		Notifier: notifier,
		Logger:   i.Logger,
		Metrics:  i.Metrics.Sink,
	})
}

// Orchestrator builds the orchestrator for id.
func (i *Infra) Orchestrator(id model.WorkerID) (*service.Orchestrator, error) {
	procs, err := i.Processes()
	if err != nil {
		return nil, err
	}
	notifier, err := i.Notifier()
	if err != nil {
		return nil, err
	}
	reaperSvc, err := i.Reaper()
	if err != nil {
		return nil, err
	}
	rc := i.repoConfig()
	return service.NewOrchestrator(service.OrchestratorOptions{
		Config:   i.Config,
		WorkerID: id,
		Stores: service.OrchestratorStores{
			Jobs:    data.NewJobRepo(i.DB, rc),
			SentLog: data.NewSentLogRepo(i.DB, rc),
		},
		Runtime: service.OrchestratorRuntime{
			Queue:     i.Queue,
			Admin:     i.Queue,
			Worker:    i.Queue,
			Processes: procs,
		},
		Reaper:   reaperSvc,
		Notifier: notifier,
		Logger:   i.Logger,
		Metrics:  i.Metrics.Sink,
	})
}

// LeafWorker builds the leaf worker for id.
func (i *Infra) LeafWorker(id model.WorkerID) (*service.LeafWorker, error) {
	return service.NewLeafWorker(service.LeafWorkerOptions{
		WorkerID:   id,
		Jobs:       data.NewJobRepo(i.DB, i.repoConfig()),
		Vendors:    data.NewVendorRepo(i.DB),
		Registry:   i.VendorRegistry(),
		Worker:     i.Queue,
		RatePerSec: i.Config.Orchestration.SendRatePerSec,
		Clock:      data.NewRealTimeProvider(i.Config.Location()),
		Logger:     i.Logger,
		Metrics:    i.Metrics.Sink,
	})
}

// ReaperRunner builds the maintenance daemon, serving /metrics when the
// prometheus sink is active.
func (i *Infra) ReaperRunner() (*reaper.Runner, error) {
	reaperSvc, err := i.Reaper()
	if err != nil {
		return nil, err
	}
	return reaper.NewRunner(reaper.RunnerOptions{
		Reaper:         reaperSvc,
		Config:         i.Config.Reaper,
		Location:       i.Config.Location(),
		Logger:         i.Logger,
		MetricsHandler: i.Metrics.Handler,
		MetricsAddr:    i.Config.Observability.Metrics.PrometheusAddress,
	})
}
