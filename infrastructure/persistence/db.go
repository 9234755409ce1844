package persistence

import (
	"fmt"

	"github.com/twodHQ/rephole/internal/database"
)

// AutoMigrate runs GORM auto migration for all models.
func AutoMigrate(db database.Database) error {
	if err := db.GORM().AutoMigrate(
		&RepoStateModel{},
		&ContentBlobModel{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// ValidateSchema verifies the expected tables exist after migration.
func ValidateSchema(db database.Database) error {
	migrator := db.GORM().Migrator()
	for _, table := range []string{"repo_states", "content_blobs"} {
		if !migrator.HasTable(table) {
			return fmt.Errorf("schema validation: missing table %q", table)
		}
	}
	return nil
}
