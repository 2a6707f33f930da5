package database

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

const versionTable = "schema_version"

// MigrationStatus is the applied schema version next to the newest one
// shipped in the binary.
type MigrationStatus struct {
	Current int32
	Latest  int32
}

func (s MigrationStatus) Pending() int32 {
	return s.Latest - s.Current
}

// withMigrator opens a dedicated connection, loads the embedded
// migrations and hands the tern migrator to fn.
func withMigrator(ctx context.Context, cfg *config.Config, fn func(m *tern.Migrator) error) error {
	conn, err := pgx.Connect(ctx, DSN(&cfg.Database))
	if err != nil {
		return errors.Wrap(err, "connecting for migrations")
	}
	defer conn.Close(ctx)

	m, err := tern.NewMigrator(ctx, conn, versionTable)
	if err != nil {
		return errors.Wrap(err, "constructing database migrator")
	}

	subtree, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return errors.Wrap(err, "retrieving database migrations subtree")
	}
	if err := m.LoadMigrations(subtree); err != nil {
		return errors.Wrap(err, "loading database migrations")
	}

	return fn(m)
}

// Status reports how far the database is behind the embedded migrations.
func Status(ctx context.Context, cfg *config.Config) (MigrationStatus, error) {
	var status MigrationStatus
	err := withMigrator(ctx, cfg, func(m *tern.Migrator) error {
		current, err := m.GetCurrentVersion(ctx)
		if err != nil {
			return errors.Wrap(err, "retrieving current database migration version")
		}
		status = MigrationStatus{Current: current, Latest: int32(len(m.Migrations))}
		return nil
	})
	return status, err
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, logger *zerolog.Logger, cfg *config.Config) error {
	return withMigrator(ctx, cfg, func(m *tern.Migrator) error {
		from, err := m.GetCurrentVersion(ctx)
		if err != nil {
			return errors.Wrap(err, "retrieving current database migration version")
		}

		m.OnStart = func(sequence int32, name, direction, _ string) {
			logger.Info().
				Int32("sequence", sequence).
				Str("name", name).
				Str("direction", direction).
				Msg("applying migration")
		}

		if err := m.Migrate(ctx); err != nil {
			return err
		}

		latest := int32(len(m.Migrations))
		if from == latest {
			logger.Info().Int32("version", latest).Msg("database schema up to date")
		} else {
			logger.Info().Int32("from", from).Int32("to", latest).Msg("migrated database schema")
		}
		return nil
	})
}
