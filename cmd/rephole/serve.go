package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twodHQ/rephole/application/service"
	"github.com/twodHQ/rephole/infrastructure/api"
	"github.com/twodHQ/rephole/infrastructure/persistence"
	"github.com/twodHQ/rephole/internal/config"
	"github.com/twodHQ/rephole/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                      Server host to bind to (default: 0.0.0.0)
  PORT                      Server port to listen on (default: 3000)
  DB_URL                    Database URL (sqlite:// or postgres://)
  POSTGRES_HOST/PORT/USER/PASSWORD/DB  Relational store (when DB_URL unset)
  REDIS_HOST/PORT/PASSWORD/DB          Job queue backend
  QDRANT_HOST/PORT/SSL                 Vector store backend
  QDRANT_COLLECTION_NAME    Vector collection (default: rephole-collection)
  OPENAI_API_KEY            Embedding backend API key (required)
  OPENAI_ORGANIZATION_ID    Optional OpenAI organization header
  OPENAI_PROJECT_ID         Optional OpenAI project header
  EMBEDDING_MODEL           Embedding model (default: text-embedding-3-small)
  LOG_LEVEL                 DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                pretty, json (default: pretty)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 3000)")

	return cmd
}

func runServe(envFile, host string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = cfg.Apply(config.WithHost(host), config.WithPort(port))

	logger := log.NewLogger(cfg).Slog()
	logger.Info("starting rephole api", slog.String("version", version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobQueue, err := newQueue(ctx, cfg, logger)
	if err != nil {
		return err
	}

	db, err := newDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	vectors, err := newVectorStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := vectors.Close(); err != nil {
			logger.Error("failed to close vector store", slog.String("error", err.Error()))
		}
	}()

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return err
	}

	blobs := persistence.NewBlobStore(db, logger)
	retriever := service.NewRetriever(vectors, blobs, logger)
	queries := service.NewQueryService(embedder, retriever, logger)
	producer := service.NewProducer(jobQueue, logger)

	server := api.NewServer(cfg.Addr(), logger)
	server.MountRoutes(
		api.NewIngestionRouter(producer, logger),
		api.NewJobsRouter(jobQueue, logger),
		api.NewQueryRouter(queries, logger),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down api server")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
		}
		cancel()
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
