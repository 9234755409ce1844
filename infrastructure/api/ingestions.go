package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/twodHQ/rephole/application/service"
	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/infrastructure/api/dto"
	"github.com/twodHQ/rephole/infrastructure/api/middleware"
)

// IngestProducer validates and enqueues ingestion requests.
type IngestProducer interface {
	Enqueue(ctx context.Context, req service.IngestRequest) (job.Job, error)
}

// IngestionRouter handles the ingestion submission endpoint.
type IngestionRouter struct {
	producer IngestProducer
	logger   *slog.Logger
}

// NewIngestionRouter creates an IngestionRouter.
func NewIngestionRouter(producer IngestProducer, logger *slog.Logger) *IngestionRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionRouter{producer: producer, logger: logger}
}

// Routes returns the chi router for ingestion endpoints.
func (r *IngestionRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/repository", r.IngestRepository)
	return router
}

// IngestRepository handles POST /ingestions/repository.
func (r *IngestionRouter) IngestRepository(w http.ResponseWriter, req *http.Request) {
	var body dto.IngestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, service.NewValidationError("body", "is not valid JSON"), r.logger)
		return
	}

	queued, err := r.producer.Enqueue(req.Context(), service.IngestRequest{
		RepoURL: body.RepoURL,
		Ref:     body.Ref,
		Token:   body.Token,
		UserID:  body.UserID,
		RepoID:  body.RepoID,
		Meta:    body.Meta,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	payload := queued.Payload()
	middleware.WriteJSON(w, http.StatusCreated, dto.IngestResponse{
		Status:  "queued",
		JobID:   queued.ID(),
		RepoURL: stringField(payload, job.FieldRepoURL),
		Ref:     stringField(payload, job.FieldRef),
		RepoID:  stringField(payload, job.FieldRepoID),
	})
}

func stringField(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
