package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twodHQ/rephole/domain/search"
)

const (
	// DefaultTopK is the result count used when the request names none.
	DefaultTopK = 5
	// MaxTopK caps the requested result count.
	MaxTopK = 100
)

// QueryRequest is a semantic search over one repository.
type QueryRequest struct {
	RepoID string
	Prompt string
	TopK   int
	// Meta narrows the search to chunks carrying matching metadata.
	Meta map[string]any
}

// QueryResult is one search answer in API shape.
type QueryResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	RepoID   string         `json:"repoId"`
	Metadata map[string]any `json:"metadata"`
}

// QueryService embeds prompts and retrieves matching code.
type QueryService struct {
	embedder  search.Embedder
	retriever *Retriever
	logger    *slog.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(embedder search.Embedder, retriever *Retriever, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{embedder: embedder, retriever: retriever, logger: logger}
}

// Search returns up to TopK full parent files relevant to the prompt.
func (s *QueryService) Search(ctx context.Context, req QueryRequest) ([]QueryResult, error) {
	vector, k, filter, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	hits, err := s.retriever.Retrieve(ctx, vector, k, filter)
	if err != nil {
		return nil, err
	}
	return s.toResults(req.RepoID, hits), nil
}

// SearchChunks returns up to TopK individual chunks relevant to the prompt.
func (s *QueryService) SearchChunks(ctx context.Context, req QueryRequest) ([]QueryResult, error) {
	vector, k, filter, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	hits, err := s.retriever.RetrieveChunks(ctx, vector, k, filter)
	if err != nil {
		return nil, err
	}
	return s.toResults(req.RepoID, hits), nil
}

func (s *QueryService) prepare(ctx context.Context, req QueryRequest) ([]float32, int, search.Filter, error) {
	if req.RepoID == "" {
		return nil, 0, nil, NewValidationError("repoId", "is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, 0, nil, NewValidationError("prompt", "is required")
	}

	k := ClampTopK(req.TopK)

	filter := make(search.Filter, len(req.Meta)+1)
	for key, v := range req.Meta {
		filter[key] = v
	}
	// Assigned last so a meta entry can never redirect the search to
	// another repository.
	filter[search.KeyRepoID] = req.RepoID

	vectors, err := s.embedder.Embed(ctx, []string{req.Prompt})
	if err != nil {
		return nil, 0, nil, fmt.Errorf("embed prompt: %w", err)
	}
	if len(vectors) == 0 {
		return nil, 0, nil, NewValidationError("prompt", "is empty after sanitization")
	}

	s.logger.Debug("query prepared",
		slog.String("repoId", req.RepoID),
		slog.Int("topK", k),
	)
	return vectors[0], k, filter, nil
}

func (s *QueryService) toResults(repoID string, hits []RetrievedChunk) []QueryResult {
	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		meta := hit.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		results = append(results, QueryResult{
			ID:       hit.ID,
			Content:  hit.Content,
			RepoID:   repoID,
			Metadata: meta,
		})
	}
	return results
}

// ClampTopK bounds a requested result count to [1, MaxTopK]; non-positive
// values fall back to DefaultTopK.
func ClampTopK(k int) int {
	if k <= 0 {
		return DefaultTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}
