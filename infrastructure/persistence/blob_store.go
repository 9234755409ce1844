package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twodHQ/rephole/domain/repository"
	"github.com/twodHQ/rephole/domain/search"
	"github.com/twodHQ/rephole/internal/database"
	"gorm.io/gorm/clause"
)

// BlobStore implements search.BlobStore using GORM. Blobs are keyed on
// (id, repoId) where id is the relative file path.
type BlobStore struct {
	database.Repository[search.Blob, ContentBlobModel]
	logger *slog.Logger
}

// NewBlobStore creates a new BlobStore.
func NewBlobStore(db database.Database, logger *slog.Logger) BlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return BlobStore{
		Repository: database.NewRepository[search.Blob, ContentBlobModel](db, ContentBlobMapper{}, "content blob"),
		logger:     logger,
	}
}

// SaveParent upserts a full file body. Content is sanitized before the
// write; stripped characters are counted and logged, never an error.
func (s BlobStore) SaveParent(ctx context.Context, id, content, repoID string, meta map[string]any) error {
	clean, stripped := SanitizeContent(content)
	if stripped > 0 {
		s.logger.Warn("stripped control characters from blob content",
			slog.String("id", id),
			slog.String("repo_id", repoID),
			slog.Int("stripped", stripped),
		)
	}

	model := s.Mapper().ToModel(search.Blob{
		ID:       id,
		RepoID:   repoID,
		Content:  clean,
		Metadata: meta,
	})

	result := s.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}, {Name: "repo_id"}},
			UpdateAll: true,
		}).
		Create(&model)
	if result.Error != nil {
		return fmt.Errorf("save content blob: %w", result.Error)
	}
	return nil
}

// GetParent returns the blob for one file path.
func (s BlobStore) GetParent(ctx context.Context, repoID, id string) (search.Blob, error) {
	options := []repository.Option{repository.WithID(id)}
	if repoID != "" {
		options = append(options, repository.WithRepoID(repoID))
	}
	return s.FindOne(ctx, options...)
}

// GetParents returns the blobs that exist among the requested ids, in
// unspecified order. Missing ids are silently omitted.
func (s BlobStore) GetParents(ctx context.Context, repoID string, ids []string) ([]search.Blob, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	options := []repository.Option{repository.WithIDIn(ids)}
	if repoID != "" {
		options = append(options, repository.WithRepoID(repoID))
	}
	return s.Find(ctx, options...)
}

var _ search.BlobStore = BlobStore{}
