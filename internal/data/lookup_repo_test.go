package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/bgsms/internal/domain/model"
	apperrors "github.com/target/bgsms/internal/errors"
	"github.com/target/bgsms/internal/testutil"
)

func TestVendorRepo_GetByName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.InsertVendor(t, db, "Acme", "http_gateway", "http_gateway", "Active")
	repo := NewVendorRepo(db)

	v, err := repo.GetByName(context.Background(), " Acme ")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "http_gateway", v.SendCapability)
	assert.True(t, v.Active())

	missing, err := repo.GetByName(context.Background(), "Nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestVendorRepo_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewVendorRepo(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.Vendor{Name: "Dry", SendCapability: "log", BalanceCapability: "log"})
	require.NoError(t, err)
	assert.True(t, created)

	again, err := repo.Create(ctx, &model.Vendor{Name: "Dry", SendCapability: "http_gateway"})
	require.NoError(t, err)
	assert.False(t, again)

	v, err := repo.GetByName(ctx, "Dry")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "log", v.SendCapability)
	assert.Equal(t, model.VendorStatusActive, v.Status)

	_, err = repo.Create(ctx, &model.Vendor{Name: " "})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTemplateRepo_SeededTemplates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewTemplateRepo(db)

	for _, code := range []model.TemplateCode{
		model.TemplateJobStarted, model.TemplateJobCompleted, model.TemplateJobCanceled,
	} {
		tpl, err := repo.GetByCode(context.Background(), code)
		require.NoError(t, err)
		require.NotNil(t, tpl, code)
		assert.Equal(t, code, tpl.Code)
		assert.Contains(t, tpl.Body, "___JOB_ID___")
		assert.NotEmpty(t, tpl.Subject)
	}

	upper, err := repo.GetByCode(context.Background(), "JOB_STARTED_TEMPLATE")
	require.NoError(t, err)
	assert.NotNil(t, upper)

	missing, err := repo.GetByCode(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSchemaRepo_CreateAndValidate(t *testing.T) {
	db := testutil.SetupEmptyTestDB(t)
	repo := NewSchemaRepo(db, RepoConfig{})
	ctx := context.Background()

	err := repo.Validate(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsStorage(err))

	created, err := repo.CreateStructure(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, repo.Validate(ctx))

	created, err = repo.CreateStructure(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}
