package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

var errNoDatabase = errors.New("database is nil")

// goose keeps its FS and dialect in package globals.
var gooseMu sync.Mutex

func withGoose(database *sql.DB, fn func() error) error {
	if database == nil {
		return errNoDatabase
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return fn()
}

// RunMigrations brings the sessions and workflow_events schema up to date.
// A nil database (in-memory mode) is a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	return withGoose(database, func() error {
		return goose.UpContext(ctx, database, migrationsDir)
	})
}

// MigrateTo applies or reverts migrations until the schema is at version.
func MigrateTo(ctx context.Context, database *sql.DB, version int64) error {
	return withGoose(database, func() error {
		current, err := goose.GetDBVersion(database)
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version >= current {
			return goose.UpToContext(ctx, database, migrationsDir, version)
		}
		return goose.DownToContext(ctx, database, migrationsDir, version)
	})
}

func RollbackMigration(ctx context.Context, database *sql.DB) error {
	return withGoose(database, func() error {
		return goose.DownContext(ctx, database, migrationsDir)
	})
}

// MigrationStatus logs the applied state of each embedded migration.
func MigrationStatus(ctx context.Context, database *sql.DB) error {
	return withGoose(database, func() error {
		return goose.StatusContext(ctx, database, migrationsDir)
	})
}

// SchemaVersion reports the applied version and the newest embedded one.
func SchemaVersion(database *sql.DB) (current, latest int64, err error) {
	err = withGoose(database, func() error {
		migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
		if err != nil {
			return err
		}
		if last, err := migrations.Last(); err == nil {
			latest = last.Version
		}
		current, err = goose.GetDBVersion(database)
		return err
	})
	return current, latest, err
}
