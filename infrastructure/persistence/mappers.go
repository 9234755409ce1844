package persistence

import (
	"encoding/json"

	"github.com/twodHQ/rephole/domain/repository"
	"github.com/twodHQ/rephole/domain/search"
)

// RepoStateMapper converts between repository.State and RepoStateModel.
type RepoStateMapper struct{}

// ToDomain converts a database model to a domain state.
func (RepoStateMapper) ToDomain(m RepoStateModel) repository.State {
	var sha string
	if m.LastProcessedCommit != nil {
		sha = *m.LastProcessedCommit
	}

	var sigs map[string]string
	if m.FileSignatures != "" {
		// A corrupt signatures column is not worth failing a read over;
		// the diff path never consumes it.
		_ = json.Unmarshal([]byte(m.FileSignatures), &sigs)
	}

	return repository.NewStateWithID(m.ID, m.RepoURL, m.LocalPath, sha, sigs)
}

// ToModel converts a domain state to a database model.
func (RepoStateMapper) ToModel(s repository.State) RepoStateModel {
	m := RepoStateModel{
		ID:        s.ID(),
		RepoURL:   s.RepoURL(),
		LocalPath: s.LocalPath(),
	}

	if sha := s.LastProcessedCommit(); sha != "" {
		m.LastProcessedCommit = &sha
	}

	if sigs := s.FileSignatures(); len(sigs) > 0 {
		if raw, err := json.Marshal(sigs); err == nil {
			m.FileSignatures = string(raw)
		}
	}

	return m
}

// ContentBlobMapper converts between search.Blob and ContentBlobModel.
type ContentBlobMapper struct{}

// ToDomain converts a database model to a domain blob.
func (ContentBlobMapper) ToDomain(m ContentBlobModel) search.Blob {
	var meta map[string]any
	if m.Metadata != "" {
		_ = json.Unmarshal([]byte(m.Metadata), &meta)
	}

	return search.Blob{
		ID:       m.ID,
		RepoID:   m.RepoID,
		Content:  m.Content,
		Metadata: meta,
	}
}

// ToModel converts a domain blob to a database model.
func (ContentBlobMapper) ToModel(b search.Blob) ContentBlobModel {
	m := ContentBlobModel{
		ID:      b.ID,
		RepoID:  b.RepoID,
		Content: b.Content,
	}

	if len(b.Metadata) > 0 {
		if raw, err := json.Marshal(b.Metadata); err == nil {
			m.Metadata = string(raw)
		}
	}

	return m
}
