package config

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StoreModeMemory, cfg.StoreMode)
	assert.Equal(t, "chat.events.v1", cfg.KafkaTopic)
	assert.Equal(t, 500*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.RetryBackoff)
	assert.Equal(t, gocql.Quorum, cfg.ScyllaConsistency)
}

func TestLoadRejectsUnknownStoreMode(t *testing.T) {
	t.Setenv("STORE_MODE", "postgres")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadScyllaModeRequiresBackends(t *testing.T) {
	t.Setenv("STORE_MODE", "scylla")
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")

	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"localhost"}, cfg.ScyllaHosts)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("SCYLLA_CONSISTENCY", "one")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("RETRY_BACKOFF", "2s, 10s")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, gocql.One, cfg.ScyllaConsistency)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []time.Duration{2 * time.Second, 10 * time.Second}, cfg.RetryBackoff)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("CALL_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
