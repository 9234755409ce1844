// Package search provides the vector-record model, metadata rules, and the
// storage contracts the retrieval engine runs against.
package search

import "context"

// Filter is a flat mapping of primitive values combined as a conjunction
// of equalities. Zero keys means no filter.
type Filter map[string]any

// VectorRecord is one indexed code chunk.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Result is a search hit or a fetched record.
type Result struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// ParentID returns the parentId metadata value, or empty when absent.
func (r Result) ParentID() string {
	if r.Metadata == nil {
		return ""
	}
	if p, ok := r.Metadata[KeyParentID].(string); ok {
		return p
	}
	return ""
}

// Blob is a full source file stored in the content blob store.
type Blob struct {
	ID       string
	RepoID   string
	Content  string
	Metadata map[string]any
}

// Embedder turns texts into dense vectors. Output length equals the count
// of non-empty sanitized inputs, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the ANN index over code chunks.
type VectorStore interface {
	// Upsert validates batch IDs are pairwise unique, then writes in
	// batches. Keyed on record ID, so replays converge.
	Upsert(ctx context.Context, records []VectorRecord) error
	// SimilaritySearch returns up to k hits ordered by similarity
	// descending, with scores in [0,1].
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error)
	GetByIDs(ctx context.Context, ids []string) ([]Result, error)
	GetByFilePath(ctx context.Context, repoID, path string) ([]Result, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByFilter(ctx context.Context, filter Filter) error
}

// BlobStore is the durable KV of full file contents.
// GetParents returns a subset of the requested ids in unspecified order;
// missing ids are silently omitted.
type BlobStore interface {
	SaveParent(ctx context.Context, id, content, repoID string, meta map[string]any) error
	GetParent(ctx context.Context, repoID, id string) (Blob, error)
	GetParents(ctx context.Context, repoID string, ids []string) ([]Blob, error)
}
