package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	versions, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_schema", versions[0])
	assert.Contains(t, versions, "0002_sent_log_recipient")
	assert.IsIncreasing(t, versions)
}

func TestSchemaMigrationDefinesStorage(t *testing.T) {
	script, err := migrationsFS.ReadFile("migrations/0001_schema.sql")
	require.NoError(t, err)

	sql := string(script)
	for _, table := range []string{"sms_vendors", "sms_jobs", "sms_sent_log", "sms_templates"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Contains(t, sql, "ON DELETE CASCADE")
	assert.Contains(t, sql, "FUNCTION bgsms_time_spent")
	for _, code := range []string{"job_started_template", "job_completed_template", "job_canceled_template"} {
		assert.Contains(t, sql, "'"+code+"'")
	}
}
