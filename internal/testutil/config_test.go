package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/target/bgsms/internal/domain/model"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "")
		t.Setenv("TEST_DB_USER", "")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "bgsms", cfg.User)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "5432")
		t.Setenv("DB_SSL_MODE", "")
		cfg := DefaultTestDBConfig()
		assert.Equal(t, "5432", cfg.Port)
		assert.Contains(t, cfg.DSN(), ":5432/")
		assert.Contains(t, cfg.DSN(), "sslmode=disable")
	})
}

func TestBuilders(t *testing.T) {
	recipients := Recipients(3)
	assert.Len(t, recipients, 3)
	seen := map[string]bool{}
	for _, r := range recipients {
		assert.Len(t, r.To, 11)
		seen[r.To] = true
	}
	assert.Len(t, seen, 3)

	id := JobID("ab")
	assert.Len(t, id, model.JobIDLength)

	task := NewRecipient().WithVendor("Other").ForJob(id, 2).Build()
	assert.Equal(t, "Other", task.VendorName)
	assert.Equal(t, 2, task.RetryNumber)
}
