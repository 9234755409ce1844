package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twodHQ/rephole/application/handler"
	"github.com/twodHQ/rephole/application/handler/ingest"
	"github.com/twodHQ/rephole/application/service"
	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/infrastructure/chunking"
	"github.com/twodHQ/rephole/infrastructure/git"
	"github.com/twodHQ/rephole/infrastructure/persistence"
	"github.com/twodHQ/rephole/internal/config"
	"github.com/twodHQ/rephole/internal/log"
)

func workerCmd() *cobra.Command {
	var (
		envFile string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Start a queue worker",
		Long: `Start a queue worker that consumes ingestion jobs.

The worker clones repositories, chunks source files with tree-sitter,
embeds the chunks, and writes them to the vector and blob stores. A
small health listener answers GET /health on WORKER_PORT.

Environment variables are shared with the serve command, plus:
  WORKER_PORT               Health listener port (default: 3002)
  LOCAL_STORAGE_PATH        Working clone root (default: .rephole/repos)
  VECTOR_STORE_BATCH_SIZE   Max records per upsert batch (default: 1000)
  MEMORY_MONITORING         Log heap usage periodically (default: false)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(envFile, port)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().IntVar(&port, "port", 0, "Health listener port (default: 3002)")

	return cmd
}

func runWorker(envFile string, port int) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	cfg = cfg.Apply(config.WithWorkerPort(port))

	logger := log.NewLogger(cfg).Slog()
	logger.Info("starting rephole worker", slog.String("version", version))

	if err := cfg.EnsureStorageDir(); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	registry := chunking.NewRegistry(logger)
	if registry.LanguageCount() == 0 {
		return fmt.Errorf("no tree-sitter grammars available, refusing to start")
	}
	splitter := chunking.NewSplitter(registry, logger)

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

	mirror, err := git.NewGiteaMirror(logger)
	if err != nil {
		return fmt.Errorf("create git mirror: %w", err)
	}

	handlers := handler.NewRegistry()
	handlers.Register(job.OpIngestRepository, ingest.NewRepository(
		persistence.NewStateStore(db),
		mirror,
		splitter,
		embedder,
		vectors,
		persistence.NewBlobStore(db, logger),
		jobQueue,
		cfg.LocalStoragePath(),
		logger,
	))

	worker := service.NewWorker(jobQueue, handlers, logger)
	worker.Start(ctx)
	defer worker.Stop()

	if cfg.MemoryMonitoring() {
		monitor := service.NewMemoryMonitor(logger)
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	health := newHealthServer(cfg.WorkerAddr())
	go func() {
		logger.Info("worker health listener started", slog.String("addr", cfg.WorkerAddr()))
		if err := health.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health listener error", slog.String("error", err.Error()))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down worker")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := health.Shutdown(shutdownCtx); err != nil {
		logger.Error("health listener shutdown error", slog.String("error", err.Error()))
	}
	return nil
}

func newHealthServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
