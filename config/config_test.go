package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "")
	t.Setenv("HTTP_PORT", "")
	t.Setenv("NOTIFIER_BACKEND", "")

	cfg := Load()

	assert.Equal(t, "taxidocs", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "log", cfg.NotifierBackend)
	assert.Equal(t, 15*time.Minute, cfg.S3PresignTTL)
	assert.Equal(t, 6*time.Hour, cfg.ReminderSweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.CapabilityCacheTTL)
	assert.True(t, cfg.BlobCheckOnPut)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ADMIN_IDS", "11, 22,,bad,33")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REMINDER_SWEEP_INTERVAL", "30m")
	t.Setenv("BLOB_CHECK_ON_SUBMIT", "false")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_DB", "docs")

	cfg := Load()

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, []int64{11, 22, 33}, cfg.AdminIDs)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Minute, cfg.ReminderSweepInterval)
	assert.False(t, cfg.BlobCheckOnPut)
	assert.Contains(t, cfg.PostgresURL(), "@db:")
	assert.Contains(t, cfg.PostgresURL(), "/docs?sslmode=disable")
}
