package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
)

// VendorRepo reads vendor rows.
type VendorRepo struct {
	DB *sql.DB
}

// NewVendorRepo creates a new VendorRepo.
func NewVendorRepo(db *sql.DB) *VendorRepo {
	return &VendorRepo{DB: db}
}

// GetByName returns the vendor, or (nil, nil) when it does not exist.
func (r *VendorRepo) GetByName(ctx context.Context, name string) (*model.Vendor, error) {
	var v model.Vendor
	var status string
	err := r.DB.QueryRowContext(ctx, `
		SELECT vendor_name, send_capability, balance_capability, vendor_status
		FROM sms_vendors
		WHERE vendor_name = $1`, strings.TrimSpace(name),
	).Scan(&v.Name, &v.SendCapability, &v.BalanceCapability, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for lookups
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", apperrors.MapDBError(err))
	}
	v.Status = model.VendorStatus(status)
	return &v, nil
}

// Create inserts v unless a vendor with the same name exists. It reports
// whether a row was written.
func (r *VendorRepo) Create(ctx context.Context, v *model.Vendor) (bool, error) {
	if v == nil || strings.TrimSpace(v.Name) == "" {
		return false, apperrors.ValidationField("vendor_name", "vendor name is required")
	}
	status := v.Status
	if status == "" {
		status = model.VendorStatusActive
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO sms_vendors (vendor_name, send_capability, balance_capability, vendor_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vendor_name) DO NOTHING`,
		strings.TrimSpace(v.Name), v.SendCapability, v.BalanceCapability, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("create vendor: %w", apperrors.MapDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create vendor: %w", err)
	}
	return n == 1, nil
}
