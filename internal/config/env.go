// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Field names map directly to environment variables.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the API server port.
	// Env: PORT (default: 3000)
	Port int `envconfig:"PORT" default:"3000"`

	// WorkerPort is the worker health listener port.
	// Env: WORKER_PORT (default: 3002)
	WorkerPort int `envconfig:"WORKER_PORT" default:"3002"`

	// DBURL is a full database connection URL. When set it takes
	// precedence over the POSTGRES_* fields. Use sqlite:// URLs for
	// local development and tests.
	// Env: DB_URL
	DBURL string `envconfig:"DB_URL"`

	// Postgres configures the relational store.
	Postgres PostgresEnv `envconfig:"POSTGRES"`

	// Redis configures the job queue backend.
	Redis RedisEnv `envconfig:"REDIS"`

	// Qdrant configures the vector store backend.
	Qdrant QdrantEnv `envconfig:"QDRANT"`

	// VectorStoreBatchSize is the maximum number of records per upsert batch.
	// Env: VECTOR_STORE_BATCH_SIZE (default: 1000)
	VectorStoreBatchSize int `envconfig:"VECTOR_STORE_BATCH_SIZE" default:"1000"`

	// LocalStoragePath is the root directory for working clones.
	// Env: LOCAL_STORAGE_PATH (default: .rephole/repos)
	LocalStoragePath string `envconfig:"LOCAL_STORAGE_PATH" default:".rephole/repos"`

	// OpenAIAPIKey authenticates against the embedding backend.
	// Env: OPENAI_API_KEY
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// OpenAIOrganizationID is the optional OpenAI organization header.
	// Env: OPENAI_ORGANIZATION_ID
	OpenAIOrganizationID string `envconfig:"OPENAI_ORGANIZATION_ID"`

	// OpenAIProjectID is the optional OpenAI project header.
	// Env: OPENAI_PROJECT_ID
	OpenAIProjectID string `envconfig:"OPENAI_PROJECT_ID"`

	// EmbeddingModel is the embedding model identifier.
	// Env: EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// MemoryMonitoring enables periodic heap usage logging in the worker.
	// Env: MEMORY_MONITORING (default: false)
	MemoryMonitoring bool `envconfig:"MEMORY_MONITORING" default:"false"`
}

// PostgresEnv holds connection settings for the relational store.
type PostgresEnv struct {
	// Env: POSTGRES_HOST (default: localhost)
	Host string `envconfig:"HOST" default:"localhost"`

	// Env: POSTGRES_PORT (default: 5432)
	Port int `envconfig:"PORT" default:"5432"`

	// Env: POSTGRES_USER (default: postgres)
	User string `envconfig:"USER" default:"postgres"`

	// Env: POSTGRES_PASSWORD
	Password string `envconfig:"PASSWORD"`

	// Env: POSTGRES_DB (default: rephole)
	DB string `envconfig:"DB" default:"rephole"`

	// Env: POSTGRES_SSLMODE (default: disable)
	SSLMode string `envconfig:"SSLMODE" default:"disable"`
}

// URL builds a postgres:// connection URL from the individual fields.
func (p PostgresEnv) URL() string {
	auth := p.User
	if p.Password != "" {
		auth = fmt.Sprintf("%s:%s", p.User, p.Password)
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s?sslmode=%s", auth, p.Host, p.Port, p.DB, p.SSLMode)
}

// RedisEnv holds connection settings for the job queue.
type RedisEnv struct {
	// Env: REDIS_HOST (default: localhost)
	Host string `envconfig:"HOST" default:"localhost"`

	// Env: REDIS_PORT (default: 6379)
	Port int `envconfig:"PORT" default:"6379"`

	// Env: REDIS_PASSWORD
	Password string `envconfig:"PASSWORD"`

	// Env: REDIS_DB (default: 0)
	DB int `envconfig:"DB" default:"0"`
}

// Addr returns the host:port address.
func (r RedisEnv) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// QdrantEnv holds connection settings for the vector store.
type QdrantEnv struct {
	// Env: QDRANT_HOST (default: localhost)
	Host string `envconfig:"HOST" default:"localhost"`

	// Env: QDRANT_PORT (default: 6334)
	Port int `envconfig:"PORT" default:"6334"`

	// Env: QDRANT_SSL (default: false)
	SSL bool `envconfig:"SSL" default:"false"`

	// Env: QDRANT_COLLECTION_NAME (default: rephole-collection)
	CollectionName string `envconfig:"COLLECTION_NAME" default:"rephole-collection"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	opts := []AppConfigOption{
		WithHost(e.Host),
		WithPort(e.Port),
		WithWorkerPort(e.WorkerPort),
		WithRedisAddr(e.Redis.Addr()),
		WithRedisPassword(e.Redis.Password),
		WithRedisDB(e.Redis.DB),
		WithQdrantHost(e.Qdrant.Host),
		WithQdrantPort(e.Qdrant.Port),
		WithQdrantSSL(e.Qdrant.SSL),
		WithCollectionName(e.Qdrant.CollectionName),
		WithVectorStoreBatchSize(e.VectorStoreBatchSize),
		WithLocalStoragePath(e.LocalStoragePath),
		WithOpenAIAPIKey(e.OpenAIAPIKey),
		WithOpenAIOrganizationID(e.OpenAIOrganizationID),
		WithOpenAIProjectID(e.OpenAIProjectID),
		WithEmbeddingModel(e.EmbeddingModel),
		WithLogLevel(e.LogLevel),
		WithLogFormat(parseLogFormat(e.LogFormat)),
		WithMemoryMonitoring(e.MemoryMonitoring),
	}

	if e.DBURL != "" {
		opts = append(opts, WithDBURL(e.DBURL))
	} else {
		opts = append(opts, WithDBURL(e.Postgres.URL()))
	}

	return cfg.Apply(opts...)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
