package job

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested job does not exist or has expired
// out of retention.
var ErrNotFound = errors.New("job not found")

// Queue is the durable at-least-once delivery channel between producers
// and the worker fleet.
type Queue interface {
	// Enqueue makes the job visible to workers.
	Enqueue(ctx context.Context, j Job) (Job, error)
	// Dequeue claims the next ready job. The boolean is false when the
	// queue is empty.
	Dequeue(ctx context.Context) (Job, bool, error)
	// Complete marks an active job as successfully finished.
	Complete(ctx context.Context, j Job) error
	// Fail records a failed attempt: the job is re-delivered after a
	// backoff until its attempt budget is spent, then parked as failed.
	Fail(ctx context.Context, j Job, cause error) error
	// SetProgress updates the completion percentage of an active job.
	SetProgress(ctx context.Context, id string, pct int) error
	// Get returns a job in any state.
	Get(ctx context.Context, id string) (Job, error)
	// ListFailed returns parked jobs, most recent first.
	ListFailed(ctx context.Context) ([]Job, error)
	// Retry moves one failed job back to the waiting state with a fresh
	// attempt budget.
	Retry(ctx context.Context, id string) (Job, error)
	// RetryAll re-enqueues every failed job and returns how many moved.
	RetryAll(ctx context.Context) (int, error)
}

// Payload field names on the queue wire format.
const (
	FieldRepoURL  = "repoUrl"
	FieldRef      = "ref"
	FieldToken    = "token"
	FieldUserID   = "userId"
	FieldRepoID   = "repoId"
	FieldMeta     = "meta"
	FieldQueuedAt = "queuedAt"
)
