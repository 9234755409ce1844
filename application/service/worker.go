package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twodHQ/rephole/application/handler"
	"github.com/twodHQ/rephole/domain/job"
)

// Worker processes jobs from the queue, one at a time.
type Worker struct {
	queue      job.Queue
	registry   *handler.Registry
	logger     *slog.Logger
	pollPeriod time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWorker creates a queue worker.
func NewWorker(queue job.Queue, registry *handler.Registry, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:      queue,
		registry:   registry,
		logger:     logger,
		pollPeriod: time.Second,
	}
}

// WithPollPeriod sets the poll period between empty-queue checks.
func (w *Worker) WithPollPeriod(d time.Duration) *Worker {
	w.pollPeriod = d
	return w
}

// Start begins processing jobs in a goroutine; stop with Stop().
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	w.logger.Info("queue worker started")
}

// Stop shuts the worker down, waiting for the in-flight job to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.logger.Info("queue worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker loop stopping")
			return
		case <-ticker.C:
			if err := w.processNext(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("error processing job",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func (w *Worker) processNext(ctx context.Context) error {
	j, found, err := w.queue.Dequeue(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	return w.processJob(ctx, j)
}

func (w *Worker) processJob(ctx context.Context, j job.Job) error {
	start := time.Now()

	w.logger.Info("processing job",
		slog.String("jobId", j.ID()),
		slog.String("operation", j.Operation().String()),
		slog.Int("attempt", j.AttemptsMade()),
	)

	h, err := w.registry.Handler(j.Operation())
	if err != nil {
		// An unroutable job can never succeed; spend its budget so it
		// parks as failed instead of blocking the queue.
		w.logger.Error("no handler for operation",
			slog.String("jobId", j.ID()),
			slog.String("operation", j.Operation().String()),
		)
		return w.queue.Fail(ctx, j, err)
	}

	if err := w.executeWithRecovery(ctx, h, j); err != nil {
		w.logger.Error("job execution failed",
			slog.String("jobId", j.ID()),
			slog.String("operation", j.Operation().String()),
			slog.String("error", err.Error()),
		)
		return w.queue.Fail(ctx, j, err)
	}

	w.logger.Info("job completed",
		slog.String("jobId", j.ID()),
		slog.String("operation", j.Operation().String()),
		slog.Duration("duration", time.Since(start)),
	)
	return w.queue.Complete(ctx, j)
}

func (w *Worker) executeWithRecovery(ctx context.Context, h handler.Handler, j job.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Execute(ctx, j)
}

// ProcessOne claims and processes a single job synchronously.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	j, found, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return true, w.processJob(ctx, j)
}
