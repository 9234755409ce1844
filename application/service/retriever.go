package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twodHQ/rephole/domain/search"
)

// parentOverFetch is the multiplier applied to k when searching children
// in parent mode: several chunks of the same file often rank together, so
// k unique parents usually need more than k hits.
const parentOverFetch = 3

// RetrievedChunk is one retrieval hit: either a full parent file or a
// single code chunk, depending on the mode.
type RetrievedChunk struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Retriever runs parent-child retrieval over the vector and blob stores.
type Retriever struct {
	vectors search.VectorStore
	blobs   search.BlobStore
	logger  *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(vectors search.VectorStore, blobs search.BlobStore, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{vectors: vectors, blobs: blobs, logger: logger}
}

// Retrieve returns up to k full parent files ranked by their best child
// hit. Hits without a parent fall back to being returned as chunks when
// no parent was found at all.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, k int, filter search.Filter) ([]RetrievedChunk, error) {
	hits, err := r.vectors.SimilaritySearch(ctx, vector, k*parentOverFetch, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	repoID := filterRepoID(filter)

	var parentIDs []string
	seen := make(map[string]struct{})
	var orphans []RetrievedChunk

	for _, hit := range hits {
		if len(parentIDs) >= k {
			break
		}

		parentID := hit.ParentID()
		if parentID == "" {
			if hit.Content != "" {
				orphans = append(orphans, RetrievedChunk{
					ID:       hit.ID,
					Content:  hit.Content,
					Metadata: hit.Metadata,
				})
			}
			continue
		}
		if _, ok := seen[parentID]; ok {
			continue
		}
		seen[parentID] = struct{}{}
		parentIDs = append(parentIDs, parentID)
	}

	if len(parentIDs) == 0 {
		if len(orphans) > k {
			orphans = orphans[:k]
		}
		return orphans, nil
	}

	blobs, err := r.blobs.GetParents(ctx, repoID, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch parents: %w", err)
	}

	// Map back in parent insertion order; the stores return subsets in
	// unspecified order and silently omit missing ids.
	byID := make(map[string]search.Blob, len(blobs))
	for _, b := range blobs {
		byID[b.ID] = b
	}

	results := make([]RetrievedChunk, 0, len(parentIDs))
	for _, id := range parentIDs {
		b, ok := byID[id]
		if !ok {
			r.logger.Warn("parent blob missing for indexed chunk",
				slog.String("parentId", id),
				slog.String("repoId", repoID),
			)
			continue
		}
		results = append(results, RetrievedChunk{
			ID:       b.ID,
			Content:  b.Content,
			Metadata: b.Metadata,
		})
	}
	return results, nil
}

// RetrieveChunks returns up to k individual chunks in relevance order.
func (r *Retriever) RetrieveChunks(ctx context.Context, vector []float32, k int, filter search.Filter) ([]RetrievedChunk, error) {
	hits, err := r.vectors.SimilaritySearch(ctx, vector, k, filter)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	results := make([]RetrievedChunk, 0, len(hits))
	for _, hit := range hits {
		if hit.Content == "" {
			continue
		}
		results = append(results, RetrievedChunk{
			ID:       hit.ID,
			Content:  hit.Content,
			Metadata: hit.Metadata,
		})
	}
	return results, nil
}

func filterRepoID(filter search.Filter) string {
	if v, ok := filter[search.KeyRepoID].(string); ok {
		return v
	}
	return ""
}
