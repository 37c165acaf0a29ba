package devseed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/bgsms/internal/domain/model"
	"github.com/target/bgsms/internal/testutil"
)

type memoryVendors struct {
	rows    map[string]model.Vendor
	failFor string
}

func (m *memoryVendors) Create(_ context.Context, v *model.Vendor) (bool, error) {
	if v.Name == m.failFor {
		return false, errors.New("boom")
	}
	if _, ok := m.rows[v.Name]; ok {
		return false, nil
	}
	m.rows[v.Name] = *v
	return true, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestRun(t *testing.T) {
	store := &memoryVendors{rows: map[string]model.Vendor{
		"Gateway": {Name: "Gateway", SendCapability: "custom"},
	}}

	require.NoError(t, Run(context.Background(), Services{Vendors: store}, quietLogger()))
	assert.Len(t, store.rows, len(DefaultVendors()))
	assert.Equal(t, "custom", store.rows["Gateway"].SendCapability, "existing rows are kept")
	assert.Equal(t, model.VendorStatusInactive, store.rows["Retired"].Status)

	require.NoError(t, Run(context.Background(), Services{Vendors: store}, quietLogger()))
}

func TestRunReportsFailures(t *testing.T) {
	store := &memoryVendors{rows: map[string]model.Vendor{}, failFor: "DryRun"}
	err := Run(context.Background(), Services{Vendors: store}, quietLogger())
	require.ErrorContains(t, err, "1 seed errors")
	assert.Len(t, store.rows, len(DefaultVendors())-1)
}

func TestRunAgainstDatabase(t *testing.T) {
	db := testutil.SetupTestDB(t)
	require.NoError(t, Run(context.Background(), NewServices(db), quietLogger()))

	var n int
	require.NoError(t, db.QueryRowContext(context.Background(),
		`SELECT count(*) FROM sms_vendors WHERE vendor_name IN ('DryRun', 'Gateway', 'Retired')`).Scan(&n))
	assert.Equal(t, 3, n)
}
