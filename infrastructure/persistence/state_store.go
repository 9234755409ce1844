package persistence

import (
	"context"
	"fmt"

	"github.com/twodHQ/rephole/domain/repository"
	"github.com/twodHQ/rephole/internal/database"
	"gorm.io/gorm/clause"
)

// StateStore implements repository.StateStore using GORM.
type StateStore struct {
	database.Repository[repository.State, RepoStateModel]
}

// NewStateStore creates a new StateStore.
func NewStateStore(db database.Database) StateStore {
	return StateStore{
		Repository: database.NewRepository[repository.State, RepoStateModel](db, RepoStateMapper{}, "repo state"),
	}
}

// FindByURL returns the state for a remote URL.
// Returns database.ErrNotFound when the repository has never been seen.
func (s StateStore) FindByURL(ctx context.Context, repoURL string) (repository.State, error) {
	return s.FindOne(ctx, repository.WithRepoURL(repoURL))
}

// FindByID returns the state with the given id.
func (s StateStore) FindByID(ctx context.Context, id string) (repository.State, error) {
	return s.FindOne(ctx, repository.WithID(id))
}

// Save upserts a state record keyed on id.
func (s StateStore) Save(ctx context.Context, state repository.State) (repository.State, error) {
	model := s.Mapper().ToModel(state)

	result := s.DB(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&model)
	if result.Error != nil {
		return repository.State{}, fmt.Errorf("save repo state: %w", result.Error)
	}

	return s.Mapper().ToDomain(model), nil
}

var _ repository.StateStore = StateStore{}
