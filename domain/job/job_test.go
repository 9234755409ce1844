package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	j := New(OpIngestRepository, map[string]any{"repoUrl": "https://github.com/acme/demo.git"})

	assert.Len(t, j.ID(), 26)
	assert.Equal(t, OpIngestRepository, j.Operation())
	assert.Equal(t, StateWaiting, j.State())
	assert.Equal(t, MaxAttempts, j.MaxAttempts())
	assert.Zero(t, j.AttemptsMade())
	assert.False(t, j.QueuedAt().IsZero())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 5*time.Second, Backoff(1))
	assert.Equal(t, 10*time.Second, Backoff(2))
	assert.Equal(t, 20*time.Second, Backoff(3))
	// Defensive floor for zero attempts.
	assert.Equal(t, 5*time.Second, Backoff(0))
}

func TestJob_WithProgress_Clamps(t *testing.T) {
	j := New(OpIngestRepository, nil)

	assert.Equal(t, 0, j.WithProgress(-5).Progress())
	assert.Equal(t, 100, j.WithProgress(250).Progress())
	assert.Equal(t, 40, j.WithProgress(40).Progress())
}

func TestJob_Exhausted(t *testing.T) {
	j := New(OpIngestRepository, nil)

	assert.False(t, j.Exhausted())
	j = j.WithAttempt().WithAttempt().WithAttempt()
	assert.True(t, j.Exhausted())
}

func TestJob_PayloadIsCopied(t *testing.T) {
	payload := map[string]any{"repoUrl": "u"}
	j := New(OpIngestRepository, payload)

	payload["repoUrl"] = "mutated"
	assert.Equal(t, "u", j.PayloadString("repoUrl"))

	got := j.Payload()
	got["extra"] = true
	assert.NotContains(t, j.Payload(), "extra")
}
