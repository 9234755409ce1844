package config

import (
	"fmt"
	"os"
)

// LogFormat is the log output format.
type LogFormat string

// Supported log formats.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// AppConfig holds the resolved application configuration.
// Construct with NewAppConfig and adjust via options.
type AppConfig struct {
	host       string
	port       int
	workerPort int

	dbURL string

	redisAddr     string
	redisPassword string
	redisDB       int

	qdrantHost     string
	qdrantPort     int
	qdrantSSL      bool
	collectionName string

	vectorStoreBatchSize int
	localStoragePath     string

	openAIAPIKey         string
	openAIOrganizationID string
	openAIProjectID      string
	embeddingModel       string

	logLevel  string
	logFormat LogFormat

	memoryMonitoring bool
}

// AppConfigOption mutates an AppConfig.
type AppConfigOption func(*AppConfig)

// NewAppConfig returns an AppConfig with defaults applied.
func NewAppConfig() AppConfig {
	return AppConfig{
		host:                 "0.0.0.0",
		port:                 3000,
		workerPort:           3002,
		dbURL:                "sqlite://.rephole/rephole.db",
		redisAddr:            "localhost:6379",
		qdrantHost:           "localhost",
		qdrantPort:           6334,
		collectionName:       "rephole-collection",
		vectorStoreBatchSize: 1000,
		localStoragePath:     ".rephole/repos",
		embeddingModel:       "text-embedding-3-small",
		logLevel:             "INFO",
		logFormat:            LogFormatPretty,
	}
}

// Apply returns a copy of the config with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithHost sets the bind host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) {
		if host != "" {
			c.host = host
		}
	}
}

// WithPort sets the API server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) {
		if port != 0 {
			c.port = port
		}
	}
}

// WithWorkerPort sets the worker health listener port.
func WithWorkerPort(port int) AppConfigOption {
	return func(c *AppConfig) {
		if port != 0 {
			c.workerPort = port
		}
	}
}

// WithDBURL sets the database connection URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) {
		if url != "" {
			c.dbURL = url
		}
	}
}

// WithRedisAddr sets the Redis address.
func WithRedisAddr(addr string) AppConfigOption {
	return func(c *AppConfig) {
		if addr != "" {
			c.redisAddr = addr
		}
	}
}

// WithRedisPassword sets the Redis password.
func WithRedisPassword(password string) AppConfigOption {
	return func(c *AppConfig) { c.redisPassword = password }
}

// WithRedisDB sets the Redis database index.
func WithRedisDB(db int) AppConfigOption {
	return func(c *AppConfig) { c.redisDB = db }
}

// WithQdrantHost sets the vector store host.
func WithQdrantHost(host string) AppConfigOption {
	return func(c *AppConfig) {
		if host != "" {
			c.qdrantHost = host
		}
	}
}

// WithQdrantPort sets the vector store port.
func WithQdrantPort(port int) AppConfigOption {
	return func(c *AppConfig) {
		if port != 0 {
			c.qdrantPort = port
		}
	}
}

// WithQdrantSSL enables TLS on the vector store connection.
func WithQdrantSSL(ssl bool) AppConfigOption {
	return func(c *AppConfig) { c.qdrantSSL = ssl }
}

// WithCollectionName sets the vector collection name.
func WithCollectionName(name string) AppConfigOption {
	return func(c *AppConfig) {
		if name != "" {
			c.collectionName = name
		}
	}
}

// WithVectorStoreBatchSize sets the maximum upsert batch size.
func WithVectorStoreBatchSize(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.vectorStoreBatchSize = n
		}
	}
}

// WithLocalStoragePath sets the working clone root directory.
func WithLocalStoragePath(path string) AppConfigOption {
	return func(c *AppConfig) {
		if path != "" {
			c.localStoragePath = path
		}
	}
}

// WithOpenAIAPIKey sets the embedding backend API key.
func WithOpenAIAPIKey(key string) AppConfigOption {
	return func(c *AppConfig) { c.openAIAPIKey = key }
}

// WithOpenAIOrganizationID sets the OpenAI organization header.
func WithOpenAIOrganizationID(id string) AppConfigOption {
	return func(c *AppConfig) { c.openAIOrganizationID = id }
}

// WithOpenAIProjectID sets the OpenAI project header.
func WithOpenAIProjectID(id string) AppConfigOption {
	return func(c *AppConfig) { c.openAIProjectID = id }
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) AppConfigOption {
	return func(c *AppConfig) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithLogLevel sets the log verbosity.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) {
		if level != "" {
			c.logLevel = level
		}
	}
}

// WithLogFormat sets the log output format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) {
		if format != "" {
			c.logFormat = format
		}
	}
}

// WithMemoryMonitoring toggles periodic heap usage logging.
func WithMemoryMonitoring(enabled bool) AppConfigOption {
	return func(c *AppConfig) { c.memoryMonitoring = enabled }
}

// Host returns the bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the API server port.
func (c AppConfig) Port() int { return c.port }

// WorkerPort returns the worker health listener port.
func (c AppConfig) WorkerPort() int { return c.workerPort }

// Addr returns the API listen address.
func (c AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.host, c.port) }

// WorkerAddr returns the worker health listen address.
func (c AppConfig) WorkerAddr() string { return fmt.Sprintf("%s:%d", c.host, c.workerPort) }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// RedisAddr returns the Redis address.
func (c AppConfig) RedisAddr() string { return c.redisAddr }

// RedisPassword returns the Redis password.
func (c AppConfig) RedisPassword() string { return c.redisPassword }

// RedisDB returns the Redis database index.
func (c AppConfig) RedisDB() int { return c.redisDB }

// QdrantHost returns the vector store host.
func (c AppConfig) QdrantHost() string { return c.qdrantHost }

// QdrantPort returns the vector store port.
func (c AppConfig) QdrantPort() int { return c.qdrantPort }

// QdrantSSL reports whether the vector store connection uses TLS.
func (c AppConfig) QdrantSSL() bool { return c.qdrantSSL }

// CollectionName returns the vector collection name.
func (c AppConfig) CollectionName() string { return c.collectionName }

// VectorStoreBatchSize returns the maximum upsert batch size.
func (c AppConfig) VectorStoreBatchSize() int { return c.vectorStoreBatchSize }

// LocalStoragePath returns the working clone root directory.
func (c AppConfig) LocalStoragePath() string { return c.localStoragePath }

// OpenAIAPIKey returns the embedding backend API key.
func (c AppConfig) OpenAIAPIKey() string { return c.openAIAPIKey }

// OpenAIOrganizationID returns the OpenAI organization header.
func (c AppConfig) OpenAIOrganizationID() string { return c.openAIOrganizationID }

// OpenAIProjectID returns the OpenAI project header.
func (c AppConfig) OpenAIProjectID() string { return c.openAIProjectID }

// EmbeddingModel returns the embedding model identifier.
func (c AppConfig) EmbeddingModel() string { return c.embeddingModel }

// LogLevel returns the log verbosity.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// MemoryMonitoring reports whether heap usage logging is enabled.
func (c AppConfig) MemoryMonitoring() bool { return c.memoryMonitoring }

// EnsureStorageDir creates the working clone root if it does not exist.
func (c AppConfig) EnsureStorageDir() error {
	return os.MkdirAll(c.localStoragePath, 0o755)
}
