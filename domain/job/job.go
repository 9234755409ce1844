// Package job provides the durable ingestion-job domain types.
package job

import (
	"maps"
	"time"

	"github.com/oklog/ulid/v2"
)

// Operation identifies the kind of work a job carries.
type Operation string

// Operations processed by the worker fleet.
const (
	OpIngestRepository Operation = "rephole.repository.ingest"
)

// String returns the operation name.
func (o Operation) String() string { return string(o) }

// State is the queue-visible lifecycle state of a job.
type State string

// Job states.
const (
	StateWaiting   State = "waiting"
	StateDelayed   State = "delayed"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Retry policy applied to every ingestion job.
const (
	// MaxAttempts is the total number of delivery attempts per job.
	MaxAttempts = 3
	// InitialBackoff is the delay before the first retry; it doubles on
	// each subsequent attempt.
	InitialBackoff = 5 * time.Second
)

// Retention windows for finished jobs.
const (
	CompletedRetention = time.Hour
	CompletedKeepCount = 100
	FailedRetention    = 24 * time.Hour
)

// Backoff returns the delay before re-delivering a job that has failed
// attemptsMade times: 5s, 10s, 20s, ...
func Backoff(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	d := InitialBackoff
	for i := 1; i < attemptsMade; i++ {
		d *= 2
	}
	return d
}

// Job is one unit of queued work. Immutable; With* methods return copies.
type Job struct {
	id           string
	operation    Operation
	payload      map[string]any
	state        State
	attemptsMade int
	maxAttempts  int
	progress     int
	failedReason string
	queuedAt     time.Time
}

// New creates a Job ready to enqueue. The id is a ULID so job listings
// sort by creation time.
func New(operation Operation, payload map[string]any) Job {
	return Job{
		id:          ulid.Make().String(),
		operation:   operation,
		payload:     copyPayload(payload),
		state:       StateWaiting,
		maxAttempts: MaxAttempts,
		queuedAt:    time.Now().UTC(),
	}
}

// NewWithID reconstructs a Job from persisted fields (used by the queue).
func NewWithID(
	id string,
	operation Operation,
	payload map[string]any,
	state State,
	attemptsMade, maxAttempts, progress int,
	failedReason string,
	queuedAt time.Time,
) Job {
	return Job{
		id:           id,
		operation:    operation,
		payload:      copyPayload(payload),
		state:        state,
		attemptsMade: attemptsMade,
		maxAttempts:  maxAttempts,
		progress:     progress,
		failedReason: failedReason,
		queuedAt:     queuedAt,
	}
}

// ID returns the job identifier.
func (j Job) ID() string { return j.id }

// Operation returns the work kind.
func (j Job) Operation() Operation { return j.operation }

// Payload returns a copy of the job payload.
func (j Job) Payload() map[string]any { return copyPayload(j.payload) }

// State returns the lifecycle state.
func (j Job) State() State { return j.state }

// AttemptsMade returns how many delivery attempts have run.
func (j Job) AttemptsMade() int { return j.attemptsMade }

// MaxAttempts returns the delivery attempt budget.
func (j Job) MaxAttempts() int { return j.maxAttempts }

// Progress returns the completion percentage (0..100).
func (j Job) Progress() int { return j.progress }

// FailedReason returns the message of the last failure, if any.
func (j Job) FailedReason() string { return j.failedReason }

// QueuedAt returns when the job was first enqueued.
func (j Job) QueuedAt() time.Time { return j.queuedAt }

// Exhausted reports whether the attempt budget is spent.
func (j Job) Exhausted() bool { return j.attemptsMade >= j.maxAttempts }

// WithState returns a copy in the given state.
func (j Job) WithState(s State) Job {
	j.state = s
	return j
}

// WithAttempt returns a copy with one more attempt recorded.
func (j Job) WithAttempt() Job {
	j.attemptsMade++
	return j
}

// WithProgress returns a copy with progress clamped to 0..100.
func (j Job) WithProgress(pct int) Job {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.progress = pct
	return j
}

// WithFailedReason returns a copy carrying the failure message.
func (j Job) WithFailedReason(reason string) Job {
	j.failedReason = reason
	return j
}

// PayloadString extracts a string payload field, empty when absent.
func (j Job) PayloadString(key string) string {
	if v, ok := j.payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadMap extracts a nested map payload field, nil when absent.
func (j Job) PayloadMap(key string) map[string]any {
	if v, ok := j.payload[key].(map[string]any); ok {
		return copyPayload(v)
	}
	return nil
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return make(map[string]any)
	}
	result := make(map[string]any, len(payload))
	maps.Copy(result, payload)
	return result
}
