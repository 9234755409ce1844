package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewState(t *testing.T) {
	s := NewState("https://github.com/acme/demo.git")

	assert.Len(t, s.ID(), 26)
	assert.Equal(t, "https://github.com/acme/demo.git", s.RepoURL())
	assert.Empty(t, s.LastProcessedCommit())
	assert.Empty(t, s.FileSignatures())
}

func TestNewState_IDsAreSortable(t *testing.T) {
	a := NewState("https://github.com/acme/a.git")
	b := NewState("https://github.com/acme/b.git")

	// ULIDs created later never sort before earlier ones.
	assert.LessOrEqual(t, a.ID(), b.ID())
}

func TestState_With(t *testing.T) {
	s := NewState("https://github.com/acme/demo.git")

	updated := s.WithLocalPath("/data/repos/" + s.ID()).WithLastProcessedCommit("abc123")

	assert.Equal(t, "/data/repos/"+s.ID(), updated.LocalPath())
	assert.Equal(t, "abc123", updated.LastProcessedCommit())
	// Original is unchanged.
	assert.Empty(t, s.LocalPath())
	assert.Empty(t, s.LastProcessedCommit())
}

func TestState_FileSignaturesCopied(t *testing.T) {
	sigs := map[string]string{"a.go": "h1"}
	s := NewState("https://github.com/acme/demo.git").WithFileSignatures(sigs)

	sigs["a.go"] = "mutated"
	assert.Equal(t, "h1", s.FileSignatures()["a.go"])

	got := s.FileSignatures()
	got["b.go"] = "h2"
	assert.NotContains(t, s.FileSignatures(), "b.go")
}
