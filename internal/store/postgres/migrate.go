package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx" // PGX driver for golang-migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies the migration scripts found in dir to the configured database.
// Having nothing left to apply is not an error.
func Migrate(cfg Config, dir string) (err error) {
	fileInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("the provided path to migration scripts is not valid: %v", err)
	}
	if !fileInfo.IsDir() {
		return fmt.Errorf("the provided path to migration scripts should be a directory, not a file")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", dir), cfg.URI("pgx"))
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %v", err)
	}
	defer func() {
		if sErr, dbErr := m.Close(); sErr != nil || dbErr != nil {
			if sErr != nil {
				slog.Error("failed to close migration source", "error", sErr)
			}
			if dbErr != nil {
				slog.Error("failed to close database connection", "error", dbErr)
			}
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %v", err)
	}
	slog.Info("Migrations applied successfully")
	return nil
}
