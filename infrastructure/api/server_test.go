package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twodHQ/rephole/application/service"
	"github.com/twodHQ/rephole/domain/job"
)

type stubProducer struct {
	queued job.Job
	err    error
	got    service.IngestRequest
}

func (s *stubProducer) Enqueue(ctx context.Context, req service.IngestRequest) (job.Job, error) {
	s.got = req
	if s.err != nil {
		return job.Job{}, s.err
	}
	return s.queued, nil
}

type stubQueryRunner struct {
	results []service.QueryResult
	err     error
	got     service.QueryRequest
	chunks  bool
}

func (s *stubQueryRunner) Search(ctx context.Context, req service.QueryRequest) ([]service.QueryResult, error) {
	s.got = req
	return s.results, s.err
}

func (s *stubQueryRunner) SearchChunks(ctx context.Context, req service.QueryRequest) ([]service.QueryResult, error) {
	s.got = req
	s.chunks = true
	return s.results, s.err
}

type stubQueue struct {
	jobs     map[string]job.Job
	failed   []job.Job
	retried  []string
	retryAll int
}

func newStubQueue() *stubQueue {
	return &stubQueue{jobs: make(map[string]job.Job)}
}

func (q *stubQueue) Enqueue(ctx context.Context, j job.Job) (job.Job, error) { return j, nil }
func (q *stubQueue) Dequeue(ctx context.Context) (job.Job, bool, error)      { return job.Job{}, false, nil }
func (q *stubQueue) Complete(ctx context.Context, j job.Job) error           { return nil }
func (q *stubQueue) Fail(ctx context.Context, j job.Job, cause error) error  { return nil }
func (q *stubQueue) SetProgress(ctx context.Context, id string, pct int) error {
	return nil
}

func (q *stubQueue) Get(ctx context.Context, id string) (job.Job, error) {
	j, ok := q.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (q *stubQueue) ListFailed(ctx context.Context) ([]job.Job, error) {
	return q.failed, nil
}

func (q *stubQueue) Retry(ctx context.Context, id string) (job.Job, error) {
	j, ok := q.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	q.retried = append(q.retried, id)
	return j, nil
}

func (q *stubQueue) RetryAll(ctx context.Context) (int, error) {
	return q.retryAll, nil
}

func newTestServer(producer IngestProducer, queue job.Queue, queries QueryRunner) *httptest.Server {
	logger := slog.Default()
	srv := NewServer(":0", logger)
	srv.MountRoutes(
		NewIngestionRouter(producer, logger),
		NewJobsRouter(queue, logger),
		NewQueryRouter(queries, logger),
	)
	return httptest.NewServer(srv.Router())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(&stubProducer{}, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestIngestRepositoryReturnsQueued(t *testing.T) {
	queued := job.New(job.OpIngestRepository, map[string]any{
		job.FieldRepoURL: "https://github.com/acme/widgets.git",
		job.FieldRef:     "main",
		job.FieldRepoID:  "widgets",
	})
	producer := &stubProducer{queued: queued}
	ts := newTestServer(producer, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/ingestions/repository", map[string]any{
		"repoUrl": "https://github.com/acme/widgets.git",
		"meta":    map[string]any{"team": "platform"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, queued.ID(), body["jobId"])
	assert.Equal(t, "widgets", body["repoId"])
	assert.Equal(t, "main", body["ref"])

	assert.Equal(t, "https://github.com/acme/widgets.git", producer.got.RepoURL)
	assert.Equal(t, "platform", producer.got.Meta["team"])
}

func TestIngestValidationErrorIs400(t *testing.T) {
	producer := &stubProducer{err: service.NewValidationError("repoUrl", "is required")}
	ts := newTestServer(producer, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/ingestions/repository", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, http.StatusBadRequest, body["statusCode"])
	assert.Equal(t, "Bad Request", body["error"])
	assert.Contains(t, body["message"], "repoUrl")
}

func TestIngestMalformedBodyIs400(t *testing.T) {
	ts := newTestServer(&stubProducer{}, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/ingestions/repository", "application/json",
		bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJobStatus(t *testing.T) {
	queue := newStubQueue()
	j := job.NewWithID("job-1", job.OpIngestRepository,
		map[string]any{job.FieldRepoID: "widgets", job.FieldToken: "secret"},
		job.StateActive, 1, 3, 40, "", time.Now().UTC())
	queue.jobs["job-1"] = j

	ts := newTestServer(&stubProducer{}, queue, &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/jobs/job/job-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "job-1", body["id"])
	assert.Equal(t, "active", body["state"])
	assert.EqualValues(t, 40, body["progress"])

	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "widgets", data["repoId"])
	assert.NotContains(t, data, "token")
}

func TestGetJobStatus_DelayedReportsWaiting(t *testing.T) {
	queue := newStubQueue()
	queue.jobs["job-2"] = job.NewWithID("job-2", job.OpIngestRepository,
		map[string]any{job.FieldRepoID: "widgets"},
		job.StateDelayed, 1, 3, 10, "transient", time.Now().UTC())

	ts := newTestServer(&stubProducer{}, queue, &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/jobs/job/job-2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A job waiting out its retry backoff is still queued from the
	// client's point of view.
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "waiting", body["state"])
}

func TestGetUnknownJobIs404(t *testing.T) {
	ts := newTestServer(&stubProducer{}, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/jobs/job/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, http.StatusNotFound, body["statusCode"])
	assert.Equal(t, "Not Found", body["error"])
}

func TestListFailedJobs(t *testing.T) {
	queue := newStubQueue()
	queue.failed = []job.Job{
		job.NewWithID("job-9", job.OpIngestRepository,
			map[string]any{job.FieldRepoID: "widgets"},
			job.StateFailed, 3, 3, 20, "clone failed", time.Now().UTC()),
	}

	ts := newTestServer(&stubProducer{}, queue, &stubQueryRunner{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/jobs/failed")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	jobs, ok := body["jobs"].([]any)
	require.True(t, ok)
	require.Len(t, jobs, 1)

	entry := jobs[0].(map[string]any)
	assert.Equal(t, "job-9", entry["id"])
	assert.Equal(t, "clone failed", entry["failedReason"])
	assert.EqualValues(t, 3, entry["attemptsMade"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestRetryJob(t *testing.T) {
	queue := newStubQueue()
	queue.jobs["job-9"] = job.NewWithID("job-9", job.OpIngestRepository, nil,
		job.StateFailed, 3, 3, 0, "boom", time.Now().UTC())

	ts := newTestServer(&stubProducer{}, queue, &stubQueryRunner{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/jobs/retry/job-9", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, "job-9", body["jobId"])
	assert.Equal(t, []string{"job-9"}, queue.retried)
}

func TestRetryUnknownJobIs404(t *testing.T) {
	ts := newTestServer(&stubProducer{}, newStubQueue(), &stubQueryRunner{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/jobs/retry/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRetryAllJobs(t *testing.T) {
	queue := newStubQueue()
	queue.retryAll = 4

	ts := newTestServer(&stubProducer{}, queue, &stubQueryRunner{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/jobs/retry/all", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, 4, body["retried"])
}

func TestQuerySearchPassesRepoIDFromPath(t *testing.T) {
	runner := &stubQueryRunner{results: []service.QueryResult{
		{ID: "a.go", Content: "package main", RepoID: "widgets", Metadata: map[string]any{}},
	}}
	ts := newTestServer(&stubProducer{}, newStubQueue(), runner)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/queries/search/widgets", map[string]any{
		"prompt": "entrypoint",
		"k":      3,
		"meta":   map[string]any{"team": "platform"},
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "widgets", runner.got.RepoID)
	assert.Equal(t, "entrypoint", runner.got.Prompt)
	assert.Equal(t, 3, runner.got.TopK)
	assert.Equal(t, "platform", runner.got.Meta["team"])
	assert.False(t, runner.chunks)

	body := decode[map[string]any](t, resp)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	hit := results[0].(map[string]any)
	assert.Equal(t, "a.go", hit["id"])
	assert.Equal(t, "widgets", hit["repoId"])
}

func TestQuerySearchChunkRoute(t *testing.T) {
	runner := &stubQueryRunner{}
	ts := newTestServer(&stubProducer{}, newStubQueue(), runner)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/queries/search/widgets/chunk", map[string]any{
		"prompt": "retry logic",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, runner.chunks)

	body := decode[map[string]any](t, resp)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	assert.Empty(t, results)
}

func TestQueryValidationErrorIs400(t *testing.T) {
	runner := &stubQueryRunner{err: service.NewValidationError("prompt", "is required")}
	ts := newTestServer(&stubProducer{}, newStubQueue(), runner)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/queries/search/widgets", map[string]any{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInternalErrorIs500WithBody(t *testing.T) {
	runner := &stubQueryRunner{err: errors.New("index unavailable")}
	ts := newTestServer(&stubProducer{}, newStubQueue(), runner)
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/queries/search/widgets", map[string]any{"prompt": "x"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.EqualValues(t, http.StatusInternalServerError, body["statusCode"])
	assert.Equal(t, "Internal Server Error", body["error"])
	assert.Contains(t, body["message"], "index unavailable")
}
