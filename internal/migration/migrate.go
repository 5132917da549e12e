package migration

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/micronest/micronest-api/internal/config"
)

const dialect = "postgres"

type Migrator struct {
	db     *sql.DB
	dir    string
	logger *zap.Logger
}

func NewMigrator(config *config.DatabaseConfig, logger *zap.Logger) (*Migrator, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return nil, fmt.Errorf("failed to set dialect: %w", err)
	}

	dir, err := getMigrationsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Migrator{
		db:     db,
		dir:    dir,
		logger: logger,
	}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}
	return nil
}

// DownTo migrates the database down to a specific version
func (m *Migrator) DownTo(ctx context.Context, version int64) error {
	if err := goose.DownToContext(ctx, m.db, m.dir, version); err != nil {
		return fmt.Errorf("failed to migrate down to version %d: %w", version, err)
	}
	return nil
}

func (m *Migrator) Reset(ctx context.Context) error {
	if err := goose.ResetContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return m.Up(ctx)
}

func (m *Migrator) Status(ctx context.Context) error {
	if err := goose.StatusContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

// CurrentVersion returns the version recorded in the database.
func (m *Migrator) CurrentVersion(ctx context.Context) (int64, error) {
	return goose.GetDBVersionContext(ctx, m.db)
}

// LatestVersion returns the newest migration found on disk.
func (m *Migrator) LatestVersion() (int64, error) {
	return latestVersion(m.dir)
}

func latestVersion(dir string) (int64, error) {
	migrations, err := goose.CollectMigrations(dir, 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}
	if len(migrations) == 0 {
		return 0, nil
	}
	return migrations[len(migrations)-1].Version, nil
}

// Sync brings the schema to the newest migration on disk, rolling back when
// the database is ahead of it.
func (m *Migrator) Sync(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}
	latest, err := m.LatestVersion()
	if err != nil {
		return fmt.Errorf("failed to get latest migration version: %w", err)
	}

	m.logger.Info("Database migration status",
		zap.Int64("current_version", current),
		zap.Int64("latest_version", latest))

	switch {
	case current > latest:
		m.logger.Info("Downgrading database schema",
			zap.Int64("from_version", current),
			zap.Int64("to_version", latest))
		return m.DownTo(ctx, latest)
	case current < latest:
		m.logger.Info("Upgrading database schema",
			zap.Int64("from_version", current),
			zap.Int64("to_version", latest))
		return m.Up(ctx)
	}
	return nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}
