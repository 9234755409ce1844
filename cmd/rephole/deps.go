package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/twodHQ/rephole/infrastructure/persistence"
	"github.com/twodHQ/rephole/infrastructure/provider"
	"github.com/twodHQ/rephole/infrastructure/queue"
	"github.com/twodHQ/rephole/infrastructure/vector"
	"github.com/twodHQ/rephole/internal/config"
	"github.com/twodHQ/rephole/internal/database"
)

// embeddingDimensions is the output width of text-embedding-3-small,
// used when a read touches the collection before the first write.
const embeddingDimensions = 1536

// newQueue connects to Redis and wraps it in the durable job queue.
func newQueue(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*queue.RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword(),
		DB:       cfg.RedisDB(),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr(), err)
	}

	return queue.NewRedisQueue(client, logger), nil
}

// newDatabase opens the relational store and runs migrations.
func newDatabase(ctx context.Context, cfg config.AppConfig) (database.Database, error) {
	db, err := database.NewDatabase(ctx, cfg.DBURL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// newVectorStore connects to Qdrant.
func newVectorStore(cfg config.AppConfig, logger *slog.Logger) (*vector.QdrantStore, error) {
	return vector.NewQdrantStore(vector.Config{
		Host:           cfg.QdrantHost(),
		Port:           cfg.QdrantPort(),
		UseTLS:         cfg.QdrantSSL(),
		CollectionName: cfg.CollectionName(),
		BatchSize:      cfg.VectorStoreBatchSize(),
		VectorSize:     embeddingDimensions,
	}, logger)
}

// newEmbedder builds the OpenAI embedding client.
func newEmbedder(cfg config.AppConfig, logger *slog.Logger) (*provider.OpenAIEmbedder, error) {
	if cfg.OpenAIAPIKey() == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	return provider.NewOpenAIEmbedder(provider.Config{
		APIKey:         cfg.OpenAIAPIKey(),
		OrganizationID: cfg.OpenAIOrganizationID(),
		ProjectID:      cfg.OpenAIProjectID(),
		Model:          cfg.EmbeddingModel(),
	}, logger), nil
}
