package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"LINKAGE_ADDR", "PORT", "DATABASE_URL", "REDIS_URL", "STORAGE_BACKEND", "LOCK_BACKEND", "KAFKA_BROKERS", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, LockLocal, cfg.Lock.Backend)
	assert.Equal(t, "contact-links", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 5, cfg.Tx.MaxAttempts)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestFromEnvDerivesBackends(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("LINKAGE_ADDR", "")
	t.Setenv("PORT", "8081")
	t.Setenv("DATABASE_URL", "postgres://localhost/linkage?sslmode=disable")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://shop.example.com, https://admin.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, LockRedis, cfg.Lock.Backend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Run("malformed duration", func(t *testing.T) {
		t.Setenv("TX_TIMEOUT", "soon")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TX_TIMEOUT")
	})

	t.Run("postgres without url", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", StoragePostgres)
		t.Setenv("DATABASE_URL", "")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("unknown lock backend", func(t *testing.T) {
		t.Setenv("LOCK_BACKEND", "zookeeper")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zookeeper")
	})
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("KAFKA_TOPIC", "")
	require.NoError(t, os.Unsetenv("KAFKA_TOPIC"))
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KAFKA_TOPIC=from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Kafka.Topic)

	_, err = Load(filepath.Join(dir, "missing.env"))
	assert.NoError(t, err)
}
