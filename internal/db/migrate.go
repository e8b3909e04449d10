package db

import (
	"errors"
	"fmt"
	"path/filepath"

	"PagedAPI/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies every pending up-migration in dir to the database at dsn.
func Migrate(dsn, dir string) error {
	src, err := MigrationSource(dir)
	if err != nil {
		return err
	}

	m, err := migrate.New(src, dsn)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("migrations_up_to_date", map[string]any{"dir": dir})
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	version, dirty, _ := m.Version()
	logger.Info("migrations_applied", map[string]any{"dir": dir, "version": version, "dirty": dirty})
	return nil
}

// MigrationSource turns dir into the absolute file:// URL golang-migrate expects.
func MigrationSource(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs migrations: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}
