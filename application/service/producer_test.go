package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twodHQ/rephole/domain/job"
)

func TestProducerEnqueuesValidRequest(t *testing.T) {
	queue := newFakeQueue()
	p := NewProducer(queue, slog.Default())

	queued, err := p.Enqueue(context.Background(), IngestRequest{
		RepoURL: "https://github.com/twodHQ/rephole.git",
		Ref:     "develop",
		Token:   "secret",
		UserID:  "user-1",
		Meta:    map[string]any{"team": "platform"},
	})
	require.NoError(t, err)

	require.Len(t, queue.waiting, 1)
	assert.Equal(t, job.OpIngestRepository, queued.Operation())

	payload := queued.Payload()
	assert.Equal(t, "https://github.com/twodHQ/rephole.git", payload[job.FieldRepoURL])
	assert.Equal(t, "develop", payload[job.FieldRef])
	assert.Equal(t, "rephole", payload[job.FieldRepoID])
	assert.Equal(t, "secret", payload[job.FieldToken])
	assert.Equal(t, "user-1", payload[job.FieldUserID])
	assert.NotEmpty(t, payload[job.FieldQueuedAt])
	meta, ok := payload[job.FieldMeta].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "platform", meta["team"])
}

func TestProducerDefaultsRefToMain(t *testing.T) {
	queue := newFakeQueue()
	p := NewProducer(queue, slog.Default())

	queued, err := p.Enqueue(context.Background(), IngestRequest{
		RepoURL: "https://github.com/acme/widgets",
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultRef, queued.Payload()[job.FieldRef])
}

func TestProducerURLValidation(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{name: "github without suffix", url: "https://github.com/acme/widgets", ok: true},
		{name: "gitlab without suffix", url: "https://gitlab.com/acme/widgets", ok: true},
		{name: "bitbucket without suffix", url: "https://bitbucket.org/acme/widgets", ok: true},
		{name: "self-hosted with git suffix", url: "https://git.acme.dev/widgets.git", ok: true},
		{name: "http scheme", url: "http://github.com/acme/widgets", ok: true},
		{name: "self-hosted without suffix", url: "https://git.acme.dev/widgets", ok: false},
		{name: "ssh scheme", url: "ssh://git@github.com/acme/widgets.git", ok: false},
		{name: "file scheme", url: "file:///tmp/repo.git", ok: false},
		{name: "empty", url: "", ok: false},
		{name: "no host", url: "https:///widgets.git", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProducer(newFakeQueue(), slog.Default())
			_, err := p.Enqueue(context.Background(), IngestRequest{RepoURL: tc.url})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				var verr *ValidationError
				assert.ErrorAs(t, err, &verr)
			}
		})
	}
}

func TestDeriveRepoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{url: "https://github.com/acme/widgets.git", want: "widgets"},
		{url: "https://github.com/acme/widgets", want: "widgets"},
		{url: "https://github.com/acme/widgets/", want: "widgets"},
		{url: "https://gitlab.com/group/sub/my.service.git", want: "my.service"},
	}
	for _, tc := range cases {
		got, err := DeriveRepoID(tc.url)
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.want, got, tc.url)
	}
}

func TestProducerRejectsBadExplicitRepoID(t *testing.T) {
	p := NewProducer(newFakeQueue(), slog.Default())

	_, err := p.Enqueue(context.Background(), IngestRequest{
		RepoURL: "https://github.com/acme/widgets",
		RepoID:  "has spaces",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "repoId", verr.Field)
}

func TestProducerAcceptsExplicitRepoID(t *testing.T) {
	p := NewProducer(newFakeQueue(), slog.Default())

	queued, err := p.Enqueue(context.Background(), IngestRequest{
		RepoURL: "https://github.com/acme/widgets",
		RepoID:  "widgets-prod",
	})
	require.NoError(t, err)
	assert.Equal(t, "widgets-prod", queued.Payload()[job.FieldRepoID])
}

func TestProducerRejectsNonPrimitiveMeta(t *testing.T) {
	p := NewProducer(newFakeQueue(), slog.Default())

	_, err := p.Enqueue(context.Background(), IngestRequest{
		RepoURL: "https://github.com/acme/widgets",
		Meta: map[string]any{
			"ok":     "fine",
			"nested": map[string]any{"no": true},
		},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "meta", verr.Field)
	assert.Contains(t, verr.Message, "nested")
}
