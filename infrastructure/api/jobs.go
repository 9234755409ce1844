package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/infrastructure/api/dto"
	"github.com/twodHQ/rephole/infrastructure/api/middleware"
)

// JobsRouter exposes job status and retry endpoints over the queue.
type JobsRouter struct {
	queue  job.Queue
	logger *slog.Logger
}

// NewJobsRouter creates a JobsRouter.
func NewJobsRouter(queue job.Queue, logger *slog.Logger) *JobsRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsRouter{queue: queue, logger: logger}
}

// Routes returns the chi router for job endpoints.
func (r *JobsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/job/{jobId}", r.GetJob)
	router.Get("/failed", r.ListFailed)
	router.Post("/retry/all", r.RetryAll)
	router.Post("/retry/{jobId}", r.Retry)
	return router
}

// GetJob handles GET /jobs/job/{jobId}.
func (r *JobsRouter) GetJob(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "jobId")

	j, err := r.queue.Get(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, dto.JobStatusResponse{
		ID:       j.ID(),
		State:    publicState(j.State()),
		Progress: j.Progress(),
		Data:     publicPayload(j),
	})
}

// publicState collapses the internal delayed state into waiting; the
// distinction is retry backoff bookkeeping, not something clients act on.
func publicState(s job.State) string {
	if s == job.StateDelayed {
		return string(job.StateWaiting)
	}
	return string(s)
}

// ListFailed handles GET /jobs/failed.
func (r *JobsRouter) ListFailed(w http.ResponseWriter, req *http.Request) {
	jobs, err := r.queue.ListFailed(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.FailedJob, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, dto.FailedJob{
			ID:           j.ID(),
			FailedReason: j.FailedReason(),
			AttemptsMade: j.AttemptsMade(),
			Timestamp:    j.QueuedAt().UTC().Format(time.RFC3339),
			Data:         publicPayload(j),
		})
	}
	middleware.WriteJSON(w, http.StatusOK, dto.FailedJobsResponse{Jobs: out})
}

// Retry handles POST /jobs/retry/{jobId}.
func (r *JobsRouter) Retry(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "jobId")

	retried, err := r.queue.Retry(req.Context(), id)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	r.logger.Info("failed job re-enqueued", slog.String("jobId", retried.ID()))
	middleware.WriteJSON(w, http.StatusOK, dto.RetryResponse{
		Status: "queued",
		JobID:  retried.ID(),
	})
}

// RetryAll handles POST /jobs/retry/all.
func (r *JobsRouter) RetryAll(w http.ResponseWriter, req *http.Request) {
	count, err := r.queue.RetryAll(req.Context())
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	r.logger.Info("failed jobs re-enqueued", slog.Int("count", count))
	middleware.WriteJSON(w, http.StatusOK, dto.RetryAllResponse{
		Status:  "queued",
		Retried: count,
	})
}

// publicPayload returns the job payload without the access token.
func publicPayload(j job.Job) map[string]any {
	payload := j.Payload()
	delete(payload, job.FieldToken)
	return payload
}
