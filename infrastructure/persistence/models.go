// Package persistence provides the GORM storage implementations for
// repository state and content blobs.
package persistence

import "time"

// RepoStateModel is the database row for a repository state record.
type RepoStateModel struct {
	ID                  string  `gorm:"primaryKey;type:char(26)"`
	RepoURL             string  `gorm:"uniqueIndex;not null"`
	LocalPath           string  `gorm:"not null"`
	LastProcessedCommit *string `gorm:""`
	FileSignatures      string  `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName maps the model to the repo_states table.
func (RepoStateModel) TableName() string { return "repo_states" }

// ContentBlobModel is the database row for a full source file. The primary
// key is composite so identical paths in different repositories do not
// collide.
type ContentBlobModel struct {
	ID        string `gorm:"primaryKey;type:text"`
	RepoID    string `gorm:"primaryKey;type:varchar(255);index"`
	Content   string `gorm:"type:text"`
	Metadata  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName maps the model to the content_blobs table.
func (ContentBlobModel) TableName() string { return "content_blobs" }
