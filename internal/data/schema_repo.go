package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/migrate"
)

// Tables owned by bgsms.
var storageTables = []string{"sms_vendors", "sms_jobs", "sms_sent_log", "sms_templates"}

// SchemaRepo creates and validates the storage schema.
type SchemaRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// NewSchemaRepo creates a new SchemaRepo.
func NewSchemaRepo(db *sql.DB, cfg RepoConfig) *SchemaRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaRepo{DB: db, logger: logger.With("component", "schema_repo")}
}

// CreateStructure applies the embedded migrations when none of the storage
// tables exist yet. It reports whether anything was created; a partially
// present schema is left untouched for Validate to report.
func (r *SchemaRepo) CreateStructure(ctx context.Context) (bool, error) {
	present, err := r.presentTables(ctx)
	if err != nil {
		return false, err
	}
	if present > 0 {
		return false, nil
	}

	applied, err := migrate.Run(ctx, r.DB)
	if err != nil {
		return false, apperrors.Wrap(apperrors.MapDBError(err), apperrors.ErrCodeStorage, "create storage structure")
	}
	r.logger.InfoContext(ctx, "storage structure created", "migrations", applied)
	return true, nil
}

// Validate returns a Storage error unless every storage table exists.
func (r *SchemaRepo) Validate(ctx context.Context) error {
	present, err := r.presentTables(ctx)
	if err != nil {
		return err
	}
	if present != len(storageTables) {
		return apperrors.Newf(apperrors.ErrCodeStorage,
			"database tables not found or missing some tables (%d of %d present)", present, len(storageTables))
	}
	return nil
}

// RunMigrations applies pending migrations regardless of the current state.
func (r *SchemaRepo) RunMigrations(ctx context.Context) error {
	if _, err := migrate.Run(ctx, r.DB); err != nil {
		return apperrors.Wrap(apperrors.MapDBError(err), apperrors.ErrCodeStorage, "run migrations")
	}
	return nil
}

func (r *SchemaRepo) presentTables(ctx context.Context) (int, error) {
	if r.DB == nil {
		return 0, ErrRepoNotConfigured
	}
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = ANY($1)`, storageTables,
	).Scan(&n)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.GetCode(mapped) == "" {
			mapped = apperrors.Wrap(err, apperrors.ErrCodeStorage, "inspect storage schema")
		}
		return 0, fmt.Errorf("check storage tables: %w", mapped)
	}
	return n, nil
}
