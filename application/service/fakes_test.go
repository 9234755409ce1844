package service

import (
	"context"
	"errors"
	"sync"

	"github.com/twodHQ/rephole/domain/job"
	"github.com/twodHQ/rephole/domain/search"
)

type fakeVectorStore struct {
	hits       []search.Result
	searchErr  error
	lastK      int
	lastFilter search.Filter
}

func (f *fakeVectorStore) Upsert(ctx context.Context, records []search.VectorRecord) error {
	return nil
}

func (f *fakeVectorStore) SimilaritySearch(ctx context.Context, vector []float32, k int, filter search.Filter) ([]search.Result, error) {
	f.lastK = k
	f.lastFilter = filter
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeVectorStore) GetByIDs(ctx context.Context, ids []string) ([]search.Result, error) {
	return nil, nil
}

func (f *fakeVectorStore) GetByFilePath(ctx context.Context, repoID, path string) ([]search.Result, error) {
	return nil, nil
}

func (f *fakeVectorStore) DeleteByIDs(ctx context.Context, ids []string) error { return nil }

func (f *fakeVectorStore) DeleteByFilter(ctx context.Context, filter search.Filter) error {
	return nil
}

type fakeBlobStore struct {
	blobs   map[string]search.Blob
	lastIDs []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string]search.Blob)}
}

func (f *fakeBlobStore) SaveParent(ctx context.Context, id, content, repoID string, meta map[string]any) error {
	f.blobs[id] = search.Blob{ID: id, RepoID: repoID, Content: content, Metadata: meta}
	return nil
}

func (f *fakeBlobStore) GetParent(ctx context.Context, repoID, id string) (search.Blob, error) {
	b, ok := f.blobs[id]
	if !ok {
		return search.Blob{}, errors.New("not found")
	}
	return b, nil
}

func (f *fakeBlobStore) GetParents(ctx context.Context, repoID string, ids []string) ([]search.Blob, error) {
	f.lastIDs = append([]string(nil), ids...)
	// Reverse order on purpose; callers must not depend on store order.
	var out []search.Blob
	for i := len(ids) - 1; i >= 0; i-- {
		if b, ok := f.blobs[ids[i]]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeEmbedder struct {
	vector   []float32
	err      error
	empty    bool
	requests [][]string
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.requests = append(f.requests, texts)
	if f.err != nil {
		return nil, f.err
	}
	if f.empty {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

// fakeQueue is an in-memory job.Queue for worker and producer tests.
type fakeQueue struct {
	mu        sync.Mutex
	waiting   []job.Job
	completed []job.Job
	failed    []job.Job
	failures  []error
	byID      map[string]job.Job
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{byID: make(map[string]job.Job)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, j job.Job) (job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.waiting = append(q.waiting, j)
	q.byID[j.ID()] = j
	return j, nil
}

func (q *fakeQueue) Dequeue(ctx context.Context) (job.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) == 0 {
		return job.Job{}, false, nil
	}
	j := q.waiting[0]
	q.waiting = q.waiting[1:]
	j = j.WithState(job.StateActive).WithAttempt()
	q.byID[j.ID()] = j
	return j, true, nil
}

func (q *fakeQueue) Complete(ctx context.Context, j job.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, j)
	return nil
}

func (q *fakeQueue) Fail(ctx context.Context, j job.Job, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed = append(q.failed, j)
	q.failures = append(q.failures, cause)
	return nil
}

func (q *fakeQueue) SetProgress(ctx context.Context, id string, pct int) error { return nil }

func (q *fakeQueue) Get(ctx context.Context, id string) (job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.byID[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (q *fakeQueue) ListFailed(ctx context.Context) ([]job.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]job.Job(nil), q.failed...), nil
}

func (q *fakeQueue) Retry(ctx context.Context, id string) (job.Job, error) {
	return job.Job{}, job.ErrNotFound
}

func (q *fakeQueue) RetryAll(ctx context.Context) (int, error) { return 0, nil }
