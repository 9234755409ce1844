// Package queue implements the durable job queue on Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twodHQ/rephole/domain/job"
)

// DefaultKeyPrefix namespaces every queue key.
const DefaultKeyPrefix = "rephole:"

// DefaultBlockTimeout is how long Dequeue blocks waiting for work before
// reporting an empty queue.
const DefaultBlockTimeout = 5 * time.Second

// Job hash field names.
const (
	hashOperation    = "operation"
	hashPayload      = "payload"
	hashState        = "state"
	hashAttempts     = "attempts"
	hashMaxAttempts  = "max_attempts"
	hashProgress     = "progress"
	hashFailedReason = "failed_reason"
	hashQueuedAt     = "queued_at"
)

// RedisQueue implements job.Queue. Layout:
//
//	<prefix>queue:wait       LIST of job ids, oldest at the tail
//	<prefix>queue:delayed    ZSET of job ids scored by ready time (unix ms)
//	<prefix>queue:active     LIST of claimed job ids
//	<prefix>queue:completed  ZSET scored by completion time, trimmed
//	<prefix>queue:failed     ZSET scored by failure time, 24h retention
//	<prefix>job:<id>         HASH of job fields
type RedisQueue struct {
	client       redis.UniversalClient
	prefix       string
	blockTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(q *RedisQueue) { q.prefix = prefix }
}

// WithBlockTimeout sets how long Dequeue blocks. Zero or negative makes
// Dequeue non-blocking.
func WithBlockTimeout(d time.Duration) Option {
	return func(q *RedisQueue) { q.blockTimeout = d }
}

// NewRedisQueue builds the queue over an existing Redis client.
func NewRedisQueue(client redis.UniversalClient, logger *slog.Logger, opts ...Option) *RedisQueue {
	if logger == nil {
		logger = slog.Default()
	}

	q := &RedisQueue{
		client:       client,
		prefix:       DefaultKeyPrefix,
		blockTimeout: DefaultBlockTimeout,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *RedisQueue) waitKey() string      { return q.prefix + "queue:wait" }
func (q *RedisQueue) delayedKey() string   { return q.prefix + "queue:delayed" }
func (q *RedisQueue) activeKey() string    { return q.prefix + "queue:active" }
func (q *RedisQueue) completedKey() string { return q.prefix + "queue:completed" }
func (q *RedisQueue) failedKey() string    { return q.prefix + "queue:failed" }
func (q *RedisQueue) jobKey(id string) string {
	return q.prefix + "job:" + id
}

// Enqueue persists the job hash and pushes the id onto the wait list.
func (q *RedisQueue) Enqueue(ctx context.Context, j job.Job) (job.Job, error) {
	j = j.WithState(job.StateWaiting)
	if err := q.saveJob(ctx, j); err != nil {
		return job.Job{}, err
	}
	if err := q.client.LPush(ctx, q.waitKey(), j.ID()).Err(); err != nil {
		return job.Job{}, fmt.Errorf("enqueue %s: %w", j.ID(), err)
	}

	q.logger.Info("job enqueued",
		slog.String("jobId", j.ID()),
		slog.String("operation", j.Operation().String()),
	)
	return j, nil
}

// Dequeue promotes due delayed jobs, then claims the oldest waiting job.
func (q *RedisQueue) Dequeue(ctx context.Context) (job.Job, bool, error) {
	if err := q.promoteDelayed(ctx); err != nil {
		return job.Job{}, false, err
	}

	var id string
	var err error
	if q.blockTimeout > 0 {
		id, err = q.client.BLMove(ctx, q.waitKey(), q.activeKey(), "RIGHT", "LEFT", q.blockTimeout).Result()
	} else {
		id, err = q.client.LMove(ctx, q.waitKey(), q.activeKey(), "RIGHT", "LEFT").Result()
	}
	if errors.Is(err, redis.Nil) {
		return job.Job{}, false, nil
	}
	if err != nil {
		return job.Job{}, false, fmt.Errorf("dequeue: %w", err)
	}

	j, err := q.loadJob(ctx, id)
	if err != nil {
		// A hash can expire while its id still sits in a list. Drop the
		// orphan and report an empty claim.
		if errors.Is(err, job.ErrNotFound) {
			q.client.LRem(ctx, q.activeKey(), 1, id)
			q.logger.Warn("dropped orphaned job id", slog.String("jobId", id))
			return job.Job{}, false, nil
		}
		return job.Job{}, false, err
	}

	j = j.WithState(job.StateActive).WithAttempt()
	if err := q.saveJob(ctx, j); err != nil {
		return job.Job{}, false, err
	}
	return j, true, nil
}

// promoteDelayed moves jobs whose backoff has elapsed back to waiting.
func (q *RedisQueue) promoteDelayed(ctx context.Context) error {
	now := q.now().UnixMilli()
	ids, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("promote delayed: %w", err)
	}

	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return fmt.Errorf("promote delayed %s: %w", id, err)
		}
		if removed == 0 {
			continue // another worker won the race
		}
		if err := q.client.LPush(ctx, q.waitKey(), id).Err(); err != nil {
			return fmt.Errorf("promote delayed %s: %w", id, err)
		}
		q.client.HSet(ctx, q.jobKey(id), hashState, string(job.StateWaiting))
	}
	return nil
}

// Complete marks the job finished and applies completed retention.
func (q *RedisQueue) Complete(ctx context.Context, j job.Job) error {
	j = j.WithState(job.StateCompleted).WithProgress(100)
	if err := q.saveJob(ctx, j); err != nil {
		return err
	}

	now := q.now()
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, j.ID())
	pipe.ZAdd(ctx, q.completedKey(), redis.Z{Score: float64(now.UnixMilli()), Member: j.ID()})
	pipe.ZRemRangeByScore(ctx, q.completedKey(), "-inf",
		strconv.FormatInt(now.Add(-job.CompletedRetention).UnixMilli(), 10))
	pipe.ZRemRangeByRank(ctx, q.completedKey(), 0, int64(-job.CompletedKeepCount-1))
	pipe.Expire(ctx, q.jobKey(j.ID()), job.CompletedRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete %s: %w", j.ID(), err)
	}

	q.logger.Info("job completed", slog.String("jobId", j.ID()))
	return nil
}

// Fail records a failed attempt. Jobs with budget left are re-delivered
// after backoff; exhausted jobs are parked in the failed set.
func (q *RedisQueue) Fail(ctx context.Context, j job.Job, cause error) error {
	reason := "unknown failure"
	if cause != nil {
		reason = cause.Error()
	}
	j = j.WithFailedReason(reason)

	if err := q.client.LRem(ctx, q.activeKey(), 1, j.ID()).Err(); err != nil {
		return fmt.Errorf("fail %s: %w", j.ID(), err)
	}

	now := q.now()
	if j.Exhausted() {
		j = j.WithState(job.StateFailed)
		if err := q.saveJob(ctx, j); err != nil {
			return err
		}

		pipe := q.client.TxPipeline()
		pipe.ZAdd(ctx, q.failedKey(), redis.Z{Score: float64(now.UnixMilli()), Member: j.ID()})
		pipe.ZRemRangeByScore(ctx, q.failedKey(), "-inf",
			strconv.FormatInt(now.Add(-job.FailedRetention).UnixMilli(), 10))
		pipe.Expire(ctx, q.jobKey(j.ID()), job.FailedRetention)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("park failed %s: %w", j.ID(), err)
		}

		q.logger.Error("job failed permanently",
			slog.String("jobId", j.ID()),
			slog.Int("attempts", j.AttemptsMade()),
			slog.String("reason", reason),
		)
		return nil
	}

	backoff := job.Backoff(j.AttemptsMade())
	j = j.WithState(job.StateDelayed)
	if err := q.saveJob(ctx, j); err != nil {
		return err
	}
	err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(now.Add(backoff).UnixMilli()),
		Member: j.ID(),
	}).Err()
	if err != nil {
		return fmt.Errorf("delay %s: %w", j.ID(), err)
	}

	q.logger.Warn("job attempt failed, re-delivering",
		slog.String("jobId", j.ID()),
		slog.Int("attempt", j.AttemptsMade()),
		slog.Duration("backoff", backoff),
		slog.String("reason", reason),
	)
	return nil
}

// SetProgress updates the progress field of a stored job.
func (q *RedisQueue) SetProgress(ctx context.Context, id string, pct int) error {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	exists, err := q.client.Exists(ctx, q.jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("set progress %s: %w", id, err)
	}
	if exists == 0 {
		return job.ErrNotFound
	}
	return q.client.HSet(ctx, q.jobKey(id), hashProgress, pct).Err()
}

// Get loads a job in any state.
func (q *RedisQueue) Get(ctx context.Context, id string) (job.Job, error) {
	return q.loadJob(ctx, id)
}

// ListFailed returns parked jobs, most recent failure first.
func (q *RedisQueue) ListFailed(ctx context.Context) ([]job.Job, error) {
	ids, err := q.client.ZRevRange(ctx, q.failedKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}

	jobs := make([]job.Job, 0, len(ids))
	for _, id := range ids {
		j, err := q.loadJob(ctx, id)
		if errors.Is(err, job.ErrNotFound) {
			continue // hash expired before the zset entry
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// Retry moves one failed job back to waiting with a fresh attempt budget.
func (q *RedisQueue) Retry(ctx context.Context, id string) (job.Job, error) {
	removed, err := q.client.ZRem(ctx, q.failedKey(), id).Result()
	if err != nil {
		return job.Job{}, fmt.Errorf("retry %s: %w", id, err)
	}
	if removed == 0 {
		return job.Job{}, job.ErrNotFound
	}

	j, err := q.loadJob(ctx, id)
	if err != nil {
		return job.Job{}, err
	}

	fresh := job.NewWithID(
		j.ID(), j.Operation(), j.Payload(),
		job.StateWaiting, 0, j.MaxAttempts(), 0, "", j.QueuedAt(),
	)
	if err := q.saveJob(ctx, fresh); err != nil {
		return job.Job{}, err
	}
	if err := q.client.Persist(ctx, q.jobKey(id)).Err(); err != nil {
		return job.Job{}, fmt.Errorf("retry %s: %w", id, err)
	}
	if err := q.client.LPush(ctx, q.waitKey(), id).Err(); err != nil {
		return job.Job{}, fmt.Errorf("retry %s: %w", id, err)
	}

	q.logger.Info("failed job re-enqueued", slog.String("jobId", id))
	return fresh, nil
}

// RetryAll re-enqueues every failed job.
func (q *RedisQueue) RetryAll(ctx context.Context) (int, error) {
	ids, err := q.client.ZRevRange(ctx, q.failedKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("retry all: %w", err)
	}

	count := 0
	for _, id := range ids {
		if _, err := q.Retry(ctx, id); err != nil {
			if errors.Is(err, job.ErrNotFound) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// saveJob writes every job field to its hash.
func (q *RedisQueue) saveJob(ctx context.Context, j job.Job) error {
	payload, err := json.Marshal(j.Payload())
	if err != nil {
		return fmt.Errorf("marshal payload %s: %w", j.ID(), err)
	}

	err = q.client.HSet(ctx, q.jobKey(j.ID()), map[string]any{
		hashOperation:    j.Operation().String(),
		hashPayload:      string(payload),
		hashState:        string(j.State()),
		hashAttempts:     j.AttemptsMade(),
		hashMaxAttempts:  j.MaxAttempts(),
		hashProgress:     j.Progress(),
		hashFailedReason: j.FailedReason(),
		hashQueuedAt:     j.QueuedAt().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("save job %s: %w", j.ID(), err)
	}
	return nil
}

// loadJob reconstructs a job from its hash.
func (q *RedisQueue) loadJob(ctx context.Context, id string) (job.Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return job.Job{}, fmt.Errorf("load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return job.Job{}, job.ErrNotFound
	}

	var payload map[string]any
	if raw := fields[hashPayload]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return job.Job{}, fmt.Errorf("unmarshal payload %s: %w", id, err)
		}
	}

	attempts, _ := strconv.Atoi(fields[hashAttempts])
	maxAttempts, _ := strconv.Atoi(fields[hashMaxAttempts])
	progress, _ := strconv.Atoi(fields[hashProgress])
	queuedAt, _ := time.Parse(time.RFC3339Nano, fields[hashQueuedAt])

	return job.NewWithID(
		id,
		job.Operation(fields[hashOperation]),
		payload,
		job.State(fields[hashState]),
		attempts,
		maxAttempts,
		progress,
		fields[hashFailedReason],
		queuedAt,
	), nil
}

var _ job.Queue = (*RedisQueue)(nil)
