// Package database provides the GORM-backed persistence layer shared by
// all stores: connection management, a generic repository, and transaction
// helpers.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// errUnsupportedDriver indicates the database URL scheme is not supported.
var errUnsupportedDriver = errors.New("unsupported database driver")

// Database is a driver-aware handle to the relational store.
type Database interface {
	// Session returns a GORM session bound to the given context.
	Session(ctx context.Context) *gorm.DB
	// GORM returns the raw GORM handle.
	GORM() *gorm.DB
	// IsPostgres reports whether the connection uses the postgres driver.
	IsPostgres() bool
	// IsSQLite reports whether the connection uses the sqlite driver.
	IsSQLite() bool
	// ConfigurePool adjusts the underlying sql.DB connection pool.
	ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error
	// Close closes the database connection.
	Close() error
}

// gormDatabase implements Database over a gorm.DB.
type gormDatabase struct {
	db       *gorm.DB
	postgres bool
}

// NewDatabase opens a database connection from a URL.
// Supported schemes: sqlite:// (and sqlite:///path), postgres://, postgresql://.
func NewDatabase(_ context.Context, url string) (Database, error) {
	dialector, isPostgres, err := parseDialector(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: slogGormLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &gormDatabase{db: db, postgres: isPostgres}, nil
}

// parseDialector resolves a GORM dialector from a database URL.
func parseDialector(url string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return nil, false, errUnsupportedDriver
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, false, fmt.Errorf("create database directory: %w", err)
			}
		}
		return sqlite.Open(path), false, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), true, nil
	default:
		return nil, false, errUnsupportedDriver
	}
}

func (d *gormDatabase) Session(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx)
}

func (d *gormDatabase) GORM() *gorm.DB {
	return d.db
}

func (d *gormDatabase) IsPostgres() bool {
	return d.postgres
}

func (d *gormDatabase) IsSQLite() bool {
	return !d.postgres
}

func (d *gormDatabase) ConfigurePool(maxOpen, maxIdle int, maxLifetime time.Duration) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(maxLifetime)
	return nil
}

func (d *gormDatabase) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("access sql.DB: %w", err)
	}
	return sqlDB.Close()
}
