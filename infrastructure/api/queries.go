package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/twodHQ/rephole/application/service"
	"github.com/twodHQ/rephole/infrastructure/api/dto"
	"github.com/twodHQ/rephole/infrastructure/api/middleware"
)

// QueryRunner answers semantic search requests.
type QueryRunner interface {
	Search(ctx context.Context, req service.QueryRequest) ([]service.QueryResult, error)
	SearchChunks(ctx context.Context, req service.QueryRequest) ([]service.QueryResult, error)
}

// QueryRouter handles the search endpoints.
type QueryRouter struct {
	queries QueryRunner
	logger  *slog.Logger
}

// NewQueryRouter creates a QueryRouter.
func NewQueryRouter(queries QueryRunner, logger *slog.Logger) *QueryRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryRouter{queries: queries, logger: logger}
}

// Routes returns the chi router for query endpoints.
func (r *QueryRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/search/{repoId}", r.Search)
	router.Post("/search/{repoId}/chunk", r.SearchChunks)
	return router
}

// Search handles POST /queries/search/{repoId}: parent-mode retrieval
// returning full files.
func (r *QueryRouter) Search(w http.ResponseWriter, req *http.Request) {
	r.handle(w, req, r.queries.Search)
}

// SearchChunks handles POST /queries/search/{repoId}/chunk: chunk-mode
// retrieval returning individual code chunks.
func (r *QueryRouter) SearchChunks(w http.ResponseWriter, req *http.Request) {
	r.handle(w, req, r.queries.SearchChunks)
}

func (r *QueryRouter) handle(
	w http.ResponseWriter,
	req *http.Request,
	run func(ctx context.Context, req service.QueryRequest) ([]service.QueryResult, error),
) {
	var body dto.QueryRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		middleware.WriteError(w, req, service.NewValidationError("body", "is not valid JSON"), r.logger)
		return
	}

	results, err := run(req.Context(), service.QueryRequest{
		RepoID: chi.URLParam(req, "repoId"),
		Prompt: body.Prompt,
		TopK:   body.K,
		Meta:   body.Meta,
	})
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	out := make([]dto.QueryResult, 0, len(results))
	for _, res := range results {
		out = append(out, dto.QueryResult{
			ID:       res.ID,
			Content:  res.Content,
			RepoID:   res.RepoID,
			Metadata: res.Metadata,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, dto.QueryResponse{Results: out})
}
