// Package devseed inserts development vendors so a fresh database can run
// jobs end to end without a real SMS gateway.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/target/bgsms/internal/adapters/vendors"
	"github.com/target/bgsms/internal/data"
	"github.com/target/bgsms/internal/domain/model"
)

// VendorCreator is the storage the seeder writes to.
type VendorCreator interface {
	Create(ctx context.Context, v *model.Vendor) (bool, error)
}

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Vendors VendorCreator
}

// NewServices constructs the seeding dependencies over db.
func NewServices(db *sql.DB) Services {
	return Services{Vendors: data.NewVendorRepo(db)}
}

// Run seeds every development fixture. Existing rows are left untouched.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if failures := seedVendors(ctx, svcs.Vendors, logger); failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

// DefaultVendors are the vendors created by Run.
func DefaultVendors() []model.Vendor {
	return []model.Vendor{
		// Logs each message and reports it as sent.
		{
			Name:              "DryRun",
			SendCapability:    vendors.CapabilityLog,
			BalanceCapability: vendors.CapabilityLog,
			Status:            model.VendorStatusActive,
		},
		// Points at an HTTP gateway configured per message through from_json.
		{
			Name:              "Gateway",
			SendCapability:    vendors.CapabilityHTTPGateway,
			BalanceCapability: vendors.CapabilityHTTPGateway,
			Status:            model.VendorStatusActive,
		},
		{
			Name:           "Retired",
			SendCapability: vendors.CapabilityLog,
			Status:         model.VendorStatusInactive,
		},
	}
}

func seedVendors(ctx context.Context, repo VendorCreator, logger *slog.Logger) int {
	failures := 0
	for _, v := range DefaultVendors() {
		created, err := repo.Create(ctx, &v)
		if err != nil {
			logger.ErrorContext(ctx, "failed to create vendor", "vendor", v.Name, "error", err)
			failures++
			continue
		}
		msg := "vendor already exists"
		if created {
			msg = "created vendor"
		}
		logger.InfoContext(ctx, msg, "vendor", v.Name, "send_capability", v.SendCapability)
	}
	return failures
}
