package repository

import (
	"context"
	"maps"

	"github.com/oklog/ulid/v2"
)

// State is the durable per-repository record. One exists per remote URL;
// it is created on the first ingestion job and never deleted by the
// pipeline. LastProcessedCommit advances monotonically on each successful
// job.
type State struct {
	id                  string
	repoURL             string
	localPath           string
	lastProcessedCommit string
	fileSignatures      map[string]string
}

// NewState creates a State for a repository seen for the first time.
// The id is a ULID: 26 characters, lexicographically time-ordered.
func NewState(repoURL string) State {
	return State{
		id:             ulid.Make().String(),
		repoURL:        repoURL,
		fileSignatures: make(map[string]string),
	}
}

// NewStateWithID reconstructs a State from persisted fields (used by stores).
func NewStateWithID(id, repoURL, localPath, lastProcessedCommit string, fileSignatures map[string]string) State {
	return State{
		id:                  id,
		repoURL:             repoURL,
		localPath:           localPath,
		lastProcessedCommit: lastProcessedCommit,
		fileSignatures:      copySignatures(fileSignatures),
	}
}

// ID returns the 26-character sortable identifier.
func (s State) ID() string { return s.id }

// RepoURL returns the canonical remote URL.
func (s State) RepoURL() string { return s.repoURL }

// LocalPath returns the absolute path of the working clone.
func (s State) LocalPath() string { return s.localPath }

// LastProcessedCommit returns the last successfully ingested commit hash,
// or empty when the repository has never been ingested.
func (s State) LastProcessedCommit() string { return s.lastProcessedCommit }

// FileSignatures returns a copy of the path-to-content-hash mapping.
// Reserved for future double-checking; the diff path does not read it.
func (s State) FileSignatures() map[string]string {
	return copySignatures(s.fileSignatures)
}

// WithLocalPath returns a copy with the working clone path set.
func (s State) WithLocalPath(path string) State {
	s.localPath = path
	return s
}

// WithLastProcessedCommit returns a copy with the commit hash advanced.
func (s State) WithLastProcessedCommit(sha string) State {
	s.lastProcessedCommit = sha
	return s
}

// WithFileSignatures returns a copy with the signature mapping replaced.
func (s State) WithFileSignatures(sigs map[string]string) State {
	s.fileSignatures = copySignatures(sigs)
	return s
}

func copySignatures(sigs map[string]string) map[string]string {
	result := make(map[string]string, len(sigs))
	maps.Copy(result, sigs)
	return result
}

// StateStore persists repository states. FindByURL is the hot path; Save
// is an upsert on id.
type StateStore interface {
	FindByURL(ctx context.Context, repoURL string) (State, error)
	FindByID(ctx context.Context, id string) (State, error)
	Save(ctx context.Context, state State) (State, error)
}
