package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, "0.0.0.0:3002", cfg.WorkerAddr())
	assert.Equal(t, "rephole-collection", cfg.CollectionName())
	assert.Equal(t, 1000, cfg.VectorStoreBatchSize())
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel())
	assert.Equal(t, LogFormatPretty, cfg.LogFormat())
	assert.False(t, cfg.MemoryMonitoring())
}

func TestAppConfig_Apply(t *testing.T) {
	cfg := NewAppConfig().Apply(
		WithPort(8080),
		WithCollectionName("custom"),
		WithVectorStoreBatchSize(250),
		WithLogFormat(LogFormatJSON),
	)

	assert.Equal(t, 8080, cfg.Port())
	assert.Equal(t, "custom", cfg.CollectionName())
	assert.Equal(t, 250, cfg.VectorStoreBatchSize())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
}

func TestAppConfig_Apply_IgnoresZeroValues(t *testing.T) {
	cfg := NewAppConfig().Apply(
		WithPort(0),
		WithCollectionName(""),
		WithVectorStoreBatchSize(-1),
	)

	assert.Equal(t, 3000, cfg.Port())
	assert.Equal(t, "rephole-collection", cfg.CollectionName())
	assert.Equal(t, 1000, cfg.VectorStoreBatchSize())
}

func TestEnvConfig_ToAppConfig(t *testing.T) {
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("QDRANT_PORT", "7443")
	t.Setenv("QDRANT_SSL", "true")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("VECTOR_STORE_BATCH_SIZE", "500")
	t.Setenv("LOG_FORMAT", "json")

	envCfg, err := LoadFromEnv()
	require.NoError(t, err)

	cfg := envCfg.ToAppConfig()
	assert.Equal(t, "qdrant.internal", cfg.QdrantHost())
	assert.Equal(t, 7443, cfg.QdrantPort())
	assert.True(t, cfg.QdrantSSL())
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr())
	assert.Equal(t, 500, cfg.VectorStoreBatchSize())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())
}

func TestPostgresEnv_URL(t *testing.T) {
	p := PostgresEnv{Host: "db", Port: 5432, User: "app", Password: "secret", DB: "rephole", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:secret@db:5432/rephole?sslmode=disable", p.URL())

	p.Password = ""
	assert.Equal(t, "postgres://app@db:5432/rephole?sslmode=disable", p.URL())
}
